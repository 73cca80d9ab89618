// Package orgs wraps the AWS Organizations operations the billing
// separator needs: OU lookup under the sandbox root, the transactional
// account mover, and the bypass tag store. All calls run against the
// org management account via chained cross-account credentials.
package orgs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
)

// Ou identifies one organizational unit under the sandbox OU.
type Ou struct {
	ID   string
	Name string
}

// OuService resolves sandbox OUs by name. Lookups are fresh on every
// call: OUs can be renamed or recreated between invocations, and a
// stale id would move accounts into the wrong subtree.
type OuService struct {
	client      organizations.ListOrganizationalUnitsForParentAPIClient
	sandboxOuID string
}

// NewOuService creates an OuService scoped to the given sandbox OU.
func NewOuService(client organizations.ListOrganizationalUnitsForParentAPIClient, sandboxOuID string) *OuService {
	return &OuService{client: client, sandboxOuID: sandboxOuID}
}

// Resolve finds the OU with the given name directly under the sandbox
// OU. Returns an error when no such OU exists.
func (s *OuService) Resolve(ctx context.Context, name string) (Ou, error) {
	paginator := organizations.NewListOrganizationalUnitsForParentPaginator(s.client, &organizations.ListOrganizationalUnitsForParentInput{
		ParentId: aws.String(s.sandboxOuID),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return Ou{}, fmt.Errorf("failed to list OUs under %s: %w", s.sandboxOuID, err)
		}
		for _, unit := range page.OrganizationalUnits {
			if aws.ToString(unit.Name) == name {
				return Ou{ID: aws.ToString(unit.Id), Name: name}, nil
			}
		}
	}

	return Ou{}, fmt.Errorf("OU %q not found under %s", name, s.sandboxOuID)
}
