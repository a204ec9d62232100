// Package fixtures serves the static cluster inventory reported by /nodes and
// /services. The data is hardcoded and never derived from a live cluster.
package fixtures

import "context"

// Node roles.
const (
	RoleManager = "manager"
	RoleWorker  = "worker"
)

// Node is one swarm node.
type Node struct {
	ID           string `json:"id"`
	Hostname     string `json:"hostname"`
	Role         string `json:"role"`
	Status       string `json:"status"`
	Availability string `json:"availability"`
	IP           string `json:"ip"`
}

// Service is one deployed stack service.
type Service struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Mode     string   `json:"mode"`
	Replicas string   `json:"replicas"`
	Image    string   `json:"image"`
	Ports    []string `json:"ports"`
}

// Inventory lists cluster nodes and services.
type Inventory interface {
	Nodes(ctx context.Context) ([]Node, error)
	Services(ctx context.Context) ([]Service, error)
}

// Static is the fixed two-node, two-service inventory.
type Static struct{}

// Nodes implements Inventory. A fresh slice is returned on every call.
func (Static) Nodes(context.Context) ([]Node, error) {
	return []Node{
		{
			ID:           "manager-1",
			Hostname:     "manager-node",
			Role:         RoleManager,
			Status:       "Ready",
			Availability: "Active",
			IP:           "192.168.1.10",
		},
		{
			ID:           "worker-1",
			Hostname:     "worker-node",
			Role:         RoleWorker,
			Status:       "Ready",
			Availability: "Active",
			IP:           "192.168.1.11",
		},
	}, nil
}

// Services implements Inventory. A fresh slice is returned on every call.
func (Static) Services(context.Context) ([]Service, error) {
	return []Service{
		{
			ID:       "web-app",
			Name:     "web-stack_web-app",
			Mode:     "replicated",
			Replicas: "3/3",
			Image:    "web-app:latest",
			Ports:    []string{"80:80"},
		},
		{
			ID:       "api",
			Name:     "web-stack_api",
			Mode:     "replicated",
			Replicas: "2/2",
			Image:    "api:latest",
			Ports:    []string{"3000:3000"},
		},
	}, nil
}

// CountRole returns how many nodes have the given role.
func CountRole(nodes []Node, role string) int {
	n := 0
	for _, node := range nodes {
		if node.Role == role {
			n++
		}
	}
	return n
}
