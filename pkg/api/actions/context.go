package actions

import (
	"github.com/controlplane-com/pool-orchestrator/pkg/api/client"
	"github.com/controlplane-com/pool-orchestrator/pkg/operation"
	"github.com/controlplane-com/pool-orchestrator/pkg/upload"
)

// Context holds the execution context for actions
type Context struct {
	Client     *client.Client
	Controller *operation.Controller
	Uploader   *upload.Uploader
	PoolID     string // default pool of operations that do not name one
}

// NewContext wires a controller and an uploader on top of api
func NewContext(api *client.Client, poolID string, ctrlOpts []operation.Option, uploadOpts []upload.Option) (*Context, error) {
	uploader, err := upload.NewUploader(api, uploadOpts...)
	if err != nil {
		return nil, err
	}
	return &Context{
		Client:     api,
		Controller: operation.NewController(api, ctrlOpts...),
		Uploader:   uploader,
		PoolID:     poolID,
	}, nil
}

func (c *Context) pool(poolID string) string {
	if poolID != "" {
		return poolID
	}
	return c.PoolID
}
