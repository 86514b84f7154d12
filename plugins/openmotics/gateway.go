package openmotics

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/joshp123/omhome/internal/config"
	"github.com/joshp123/omhome/internal/coordinator"
	"github.com/joshp123/omhome/internal/resource"
)

// Gateway is the common surface of the cloud and local clients.
type Gateway interface {
	coordinator.Fetcher
	Command(ctx context.Context, cmd resource.Command) (resource.Result, error)
	Installation(ctx context.Context) (resource.Installation, error)
	Mode() config.Mode
}

var (
	_ Gateway = (*CloudClient)(nil)
	_ Gateway = (*LocalClient)(nil)
)

// NewGateway builds the client selected by cfg.
func NewGateway(cfg *config.Config, log *logrus.Entry) (Gateway, error) {
	switch {
	case cfg.OpenMotics.Cloud != nil:
		return NewCloudClient(*cfg.OpenMotics.Cloud, cfg.Rate, log)
	case cfg.OpenMotics.Local != nil:
		return NewLocalClient(*cfg.OpenMotics.Local, log)
	default:
		return nil, fmt.Errorf("openmotics: no gateway configured")
	}
}

// InstallKey is the prefix of every entity unique id: the installation id for
// the cloud and the gateway address for local connections.
func InstallKey(gw Gateway, inst resource.Installation) string {
	if gw.Mode() == config.ModeLocal || inst.ID == 0 {
		return inst.Name
	}
	return strconv.Itoa(inst.ID)
}
