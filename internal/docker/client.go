package docker

import (
	"context"
	"fmt"
	"net"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// RCONPort is the container-side RCON port of a Minecraft server image.
const RCONPort = nat.Port("25575/tcp")

// Inspector is the subset of the Docker API used for port discovery.
type Inspector interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// Client wraps the official Docker client to provide specific functionalities.
type Client struct {
	cli Inspector
}

// New creates a new Docker client wrapper.
func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &Client{cli: cli}, nil
}

// NewWithInspector wraps an existing inspector.
func NewWithInspector(cli Inspector) *Client {
	return &Client{cli: cli}
}

// RCONAddr finds the host address bound to the container's RCON port.
func (c *Client) RCONAddr(ctx context.Context, containerID string) (string, error) {
	info, err := c.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", fmt.Errorf("container %s not found", containerID)
		}
		return "", fmt.Errorf("could not inspect container: %w", err)
	}
	if info.ContainerJSONBase != nil && info.State != nil && !info.State.Running {
		return "", fmt.Errorf("container %s is not running", containerID)
	}
	if info.NetworkSettings == nil {
		return "", fmt.Errorf("container %s has no network settings", containerID)
	}

	bindings, ok := info.NetworkSettings.Ports[RCONPort]
	if !ok || len(bindings) == 0 {
		return "", fmt.Errorf("rcon port not bound for container %s", containerID)
	}
	hostIP := bindings[0].HostIP
	if hostIP == "" || hostIP == "0.0.0.0" || hostIP == "::" {
		hostIP = "127.0.0.1"
	}
	return net.JoinHostPort(hostIP, bindings[0].HostPort), nil
}
