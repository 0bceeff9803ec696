package compute

import (
	"time"

	"stakedeck/internal/types"
)

func (s *UnitTestSuite) TestTTLCache() {
	c := NewTTL[string, string]()
	c.Set("key1", "value1", 200*time.Millisecond)
	v, ok := c.Get("key1")
	s.True(ok)
	s.Equal("value1", v)

	time.Sleep(250 * time.Millisecond)
	v, ok = c.Get("key1")
	s.False(ok)
	s.Equal("", v)
}

func (s *UnitTestSuite) TestTTLCacheClock() {
	now := time.Now()
	c := NewTTL[string, int]().WithClock(func() time.Time { return now })
	c.Set("n", 42, time.Minute)

	v, ok := c.Get("n")
	s.True(ok)
	s.Equal(42, v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("n")
	s.False(ok)
}

func (s *UnitTestSuite) TestRequestKey() {
	tags := []types.Tag{{Name: "Action", Value: "Get-Positions"}, {Name: "Staker", Value: "addr-1"}}

	k1 := requestKey(testProcess, tags, "addr-1")
	k2 := requestKey(testProcess, tags, "addr-1")
	s.Equal(k1, k2)

	s.NotEqual(k1, requestKey(testProcess, tags, "addr-2"))
	s.NotEqual(k1, requestKey("other-proc", tags, "addr-1"))

	reordered := []types.Tag{tags[1], tags[0]}
	s.NotEqual(k1, requestKey(testProcess, reordered, "addr-1"))
}
