package loaders

import (
	"context"

	"github.com/corvidaelabs/farmhand/pkg/models"
)

// API is the part of the Farmhand client the loaders call.
type API interface {
	GetUserByEmail(ctx context.Context, email, token string) (*models.User, error)
	GetStreamsByToken(ctx context.Context, token, streamID string) ([]models.StreamData, error)
	GetEventsByDate(ctx context.Context, token, username, start string, end *string) ([]models.Event, error)
	GetAllUsers(ctx context.Context, token string) ([]models.User, error)
	GetShadowUserToken(ctx context.Context, token, username string) (string, error)
}

// Loaders binds the page loaders to an API client.
type Loaders struct {
	api API
}

func New(api API) *Loaders {
	return &Loaders{api: api}
}
