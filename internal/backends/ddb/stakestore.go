package ddb

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"stakedeck/internal/types"
)

// StakeStore implements ports.PendingStakeStore with one item per marker
// under the wallet partition.
type StakeStore struct {
	table string
	cli   *dynamodb.Client
}

func NewStakeStore(table string, cli *dynamodb.Client) *StakeStore {
	createTableIfNotExists(cli, table)
	return &StakeStore{table: table, cli: cli}
}

func (s *StakeStore) List(ctx context.Context, address string) ([]types.PendingStake, error) {
	out, err := s.cli.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.table,
		ConsistentRead:         awsBool(true),
		KeyConditionExpression: awsString("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk": &ddbTypes.AttributeValueMemberS{Value: pkWallet(address)},
			":sk": &ddbTypes.AttributeValueMemberS{Value: SPending + "#"},
		},
	})
	if err != nil {
		return nil, err
	}
	markers := make([]types.PendingStake, 0, len(out.Items))
	for _, item := range out.Items {
		var m types.PendingStake
		if err := attributevalue.UnmarshalMap(item, &m); err != nil {
			return nil, fmt.Errorf("invalid pending-stake item: %w", err)
		}
		markers = append(markers, m)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].CreatedAt < markers[j].CreatedAt })
	return markers, nil
}

func (s *StakeStore) Put(ctx context.Context, marker types.PendingStake) error {
	item, err := attributevalue.MarshalMap(struct {
		PK string `dynamodbav:"PK"`
		SK string `dynamodbav:"SK"`
		types.PendingStake
	}{
		PK:           pkWallet(marker.Address),
		SK:           skPending(marker.ID),
		PendingStake: marker,
	})
	if err != nil {
		return err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	})
	return err
}

func (s *StakeStore) Delete(ctx context.Context, address, id string) error {
	_, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkWallet(address)},
			"SK": &ddbTypes.AttributeValueMemberS{Value: skPending(id)},
		},
	})
	return err
}

// Addresses scans for wallet partitions with live markers. Marker volume is
// bounded by in-flight transactions, so a scan at boot is acceptable.
func (s *StakeStore) Addresses(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var addresses []string
	var startKey map[string]ddbTypes.AttributeValue
	for {
		out, err := s.cli.Scan(ctx, &dynamodb.ScanInput{
			TableName:            &s.table,
			ProjectionExpression: awsString("PK"),
			FilterExpression:     awsString("begins_with(PK, :p) AND begins_with(SK, :s)"),
			ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
				":p": &ddbTypes.AttributeValueMemberS{Value: SWallet + "#"},
				":s": &ddbTypes.AttributeValueMemberS{Value: SPending + "#"},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			pk, ok := item["PK"].(*ddbTypes.AttributeValueMemberS)
			if !ok {
				continue
			}
			address, err := parseWalletAddress(pk.Value)
			if err != nil || seen[address] {
				continue
			}
			seen[address] = true
			addresses = append(addresses, address)
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return addresses, nil
}
