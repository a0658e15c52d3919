package netconf

import "encoding/json"

// PortMapSpec is one decoded STARTPOD port-map entry.
type PortMapSpec struct {
	HostPort      int    `json:"hostPort"`
	ContainerPort int    `json:"containerPort"`
	Protocol      string `json:"protocol,omitempty"`
}

// PortMapperImpl implements hyper.PortMapper. Actual host↔guest port forwarding
// is established on the host side of the virtio-net device (outside this
// process's reach); this collaborator's job is limited to validating and
// recording the requested maps so NAT/firewall rules inside the guest (if
// any) can reference them.
type PortMapperImpl struct {
	Applied []PortMapSpec
}

func NewPortMapper() *PortMapperImpl { return &PortMapperImpl{} }

func (p *PortMapperImpl) Apply(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	var specs []PortMapSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return err
	}
	p.Applied = append(p.Applied, specs...)
	return nil
}
