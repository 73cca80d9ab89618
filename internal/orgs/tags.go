package orgs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
)

// BypassTagKey is the Organizations tag operators set on an account to
// exempt it from the quarantine hold. The quarantine controller removes
// the tag when it honors it, so the exemption applies to one cycle only.
const BypassTagKey = "do-not-separate"

// TagAPI defines the Organizations tag operations the store needs.
type TagAPI interface {
	ListTagsForResource(ctx context.Context, params *organizations.ListTagsForResourceInput, optFns ...func(*organizations.Options)) (*organizations.ListTagsForResourceOutput, error)
	UntagResource(ctx context.Context, params *organizations.UntagResourceInput, optFns ...func(*organizations.Options)) (*organizations.UntagResourceOutput, error)
}

// TagStore reads and removes account tags.
type TagStore struct {
	client TagAPI
}

// NewTagStore creates a TagStore.
func NewTagStore(client TagAPI) *TagStore {
	return &TagStore{client: client}
}

// HasTag reports whether the account carries the given tag key.
func (s *TagStore) HasTag(ctx context.Context, accountID, key string) (bool, error) {
	input := &organizations.ListTagsForResourceInput{
		ResourceId: aws.String(accountID),
	}

	for {
		output, err := s.client.ListTagsForResource(ctx, input)
		if err != nil {
			return false, fmt.Errorf("failed to list tags for account %s: %w", accountID, err)
		}
		for _, tag := range output.Tags {
			if aws.ToString(tag.Key) == key {
				return true, nil
			}
		}
		if output.NextToken == nil {
			return false, nil
		}
		input.NextToken = output.NextToken
	}
}

// RemoveTag deletes the given tag key from the account.
func (s *TagStore) RemoveTag(ctx context.Context, accountID, key string) error {
	_, err := s.client.UntagResource(ctx, &organizations.UntagResourceInput{
		ResourceId: aws.String(accountID),
		TagKeys:    []string{key},
	})
	if err != nil {
		return fmt.Errorf("failed to remove tag %s from account %s: %w", key, accountID, err)
	}
	return nil
}
