package managers

import (
	"context"
	"fmt"

	"github.com/loomhq/loom/internal/domain"
	"github.com/loomhq/loom/pkg/clients/loom"
)

type graphManager struct {
	client loom.ClientInterface
}

// GraphManagerDependencies are the collaborators of the graph manager.
type GraphManagerDependencies struct {
	Client loom.ClientInterface
}

// NewGraphManager adapts the platform API client to the domain's graph
// scanning and project resolution interfaces.
func NewGraphManager(deps GraphManagerDependencies) domain.GraphService {
	return &graphManager{client: deps.Client}
}

func (m *graphManager) ScanTriggerNodes(ctx context.Context, graphID string) ([]domain.TriggerNode, error) {
	if graphID == "" {
		return nil, fmt.Errorf("graph ID cannot be empty")
	}

	response, err := m.client.ScanTriggerNodes(ctx, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan trigger nodes: %w", err)
	}

	nodes := make([]domain.TriggerNode, 0, len(response.TriggerNodes))
	for _, node := range response.TriggerNodes {
		enabled := true
		if node.Params.Enabled != nil {
			enabled = *node.Params.Enabled
		}
		nodes = append(nodes, domain.TriggerNode{
			NodeInstanceID: node.NodeInstanceID,
			CronExpression: node.Params.CronExpression,
			Timezone:       node.Params.Timezone,
			Enabled:        enabled,
		})
	}
	return nodes, nil
}

func (m *graphManager) GetProjectOrganizationID(ctx context.Context, projectID string) (string, error) {
	if projectID == "" {
		return "", fmt.Errorf("project ID cannot be empty")
	}

	response, err := m.client.GetProjectOrganization(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project organization: %w", err)
	}
	return response.OrganizationID, nil
}
