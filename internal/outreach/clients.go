package outreach

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/store"
)

func (r *Records) Clients(ctx context.Context) ([]models.Client, error) {
	clients := []models.Client{}
	if _, err := r.st.Load(ctx, store.Local, models.KeyClients, &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *Records) activeID(ctx context.Context) (string, error) {
	var id string
	if _, err := r.st.Load(ctx, store.Local, models.KeyActiveClient, &id); err != nil {
		return "", err
	}
	return id, nil
}

// ActiveClient returns the selected client, or ErrNoClient.
func (r *Records) ActiveClient(ctx context.Context) (*models.Client, error) {
	clients, err := r.Clients(ctx)
	if err != nil {
		return nil, err
	}
	id, err := r.activeID(ctx)
	if err != nil {
		return nil, err
	}
	for i := range clients {
		if clients[i].ID == id {
			return &clients[i], nil
		}
	}
	return nil, ErrNoClient
}

// AddClient creates a client with no templates and makes it the active one.
func (r *Records) AddClient(ctx context.Context, name string) (models.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Client{}, ErrEmptyName
	}
	clients, err := r.Clients(ctx)
	if err != nil {
		return models.Client{}, err
	}
	c := models.Client{ID: uuid.NewString(), Name: name, Templates: []models.Template{}}
	clients = append(clients, c)
	if err := r.st.Set(ctx, store.Local, map[string]any{
		models.KeyClients:      clients,
		models.KeyActiveClient: c.ID,
	}); err != nil {
		return models.Client{}, err
	}
	r.log.Info("client added", "id", c.ID, "name", name)
	return c, nil
}

func (r *Records) SetActiveClient(ctx context.Context, id string) error {
	clients, err := r.Clients(ctx)
	if err != nil {
		return err
	}
	for _, c := range clients {
		if c.ID == id {
			return r.st.Save(ctx, store.Local, models.KeyActiveClient, id)
		}
	}
	return fmt.Errorf("%w: %s", ErrNoClient, id)
}

// updateClient loads the client list, applies fn to client id and writes the list back.
func (r *Records) updateClient(ctx context.Context, id string, fn func(*models.Client) error) error {
	clients, err := r.Clients(ctx)
	if err != nil {
		return err
	}
	for i := range clients {
		if clients[i].ID != id {
			continue
		}
		if err := fn(&clients[i]); err != nil {
			return err
		}
		return r.st.Save(ctx, store.Local, models.KeyClients, clients)
	}
	return fmt.Errorf("%w: %s", ErrNoClient, id)
}

func checkIndex(c *models.Client, idx int) error {
	if idx < 0 || idx >= len(c.Templates) {
		return fmt.Errorf("%w: %d", ErrTemplateIndex, idx)
	}
	return nil
}

// AddTemplate appends an empty template and returns its index.
func (r *Records) AddTemplate(ctx context.Context, clientID, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrEmptyName
	}
	idx := -1
	err := r.updateClient(ctx, clientID, func(c *models.Client) error {
		c.Templates = append(c.Templates, models.Template{Name: name})
		idx = len(c.Templates) - 1
		return nil
	})
	return idx, err
}

func (r *Records) RenameTemplate(ctx context.Context, clientID string, idx int, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	return r.updateClient(ctx, clientID, func(c *models.Client) error {
		if err := checkIndex(c, idx); err != nil {
			return err
		}
		c.Templates[idx].Name = name
		return nil
	})
}

func (r *Records) SaveTemplate(ctx context.Context, clientID string, idx int, content string) error {
	return r.updateClient(ctx, clientID, func(c *models.Client) error {
		if err := checkIndex(c, idx); err != nil {
			return err
		}
		c.Templates[idx].Content = content
		return nil
	})
}

// DeleteTemplate removes a template. The default index keeps pointing at the
// same template when an earlier one is removed, and falls back to 0 when the
// default itself goes.
func (r *Records) DeleteTemplate(ctx context.Context, clientID string, idx int) error {
	return r.updateClient(ctx, clientID, func(c *models.Client) error {
		if err := checkIndex(c, idx); err != nil {
			return err
		}
		c.Templates = append(c.Templates[:idx], c.Templates[idx+1:]...)
		switch {
		case idx < c.DefaultIndex:
			c.DefaultIndex--
		case idx == c.DefaultIndex:
			c.DefaultIndex = 0
		}
		return nil
	})
}

func (r *Records) SetDefaultTemplate(ctx context.Context, clientID string, idx int) error {
	return r.updateClient(ctx, clientID, func(c *models.Client) error {
		if err := checkIndex(c, idx); err != nil {
			return err
		}
		c.DefaultIndex = idx
		return nil
	})
}

// DefaultTemplate returns the active client's default template content.
func (r *Records) DefaultTemplate(ctx context.Context) (string, error) {
	c, err := r.ActiveClient(ctx)
	if err != nil {
		return "", err
	}
	if err := checkIndex(c, c.DefaultIndex); err != nil {
		return "", err
	}
	return c.Templates[c.DefaultIndex].Content, nil
}
