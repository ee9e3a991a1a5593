// Package clients is the customer registry orders are placed for.
package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/google/uuid"
)

type Service struct {
	Store orders.Store
	Log   *slog.Logger
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

type Input struct {
	Name    string `json:"name"`
	NIP     string `json:"nip"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Notes   string `json:"notes"`
}

// normalize trims every field and checks the ones with a shape.
func (in Input) normalize() (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.NIP = strings.TrimSpace(in.NIP)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" {
		return in, orders.Invalid("client name is required")
	}
	if in.Email != "" {
		addr, err := mail.ParseAddress(in.Email)
		if err != nil || addr.Address != in.Email {
			return in, orders.Invalid("email %q is not a plain address", in.Email)
		}
	}
	return in, nil
}

func (s *Service) CreateClient(ctx context.Context, in Input) (*orders.Client, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	now := s.now()
	c := &orders.Client{
		ID:        uuid.NewString(),
		Name:      in.Name,
		NIP:       in.NIP,
		Address:   in.Address,
		Phone:     in.Phone,
		Email:     in.Email,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.InsertClient(ctx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	s.log().Info("client created", "client_id", c.ID)
	return c, nil
}

// UpdateClient replaces every editable field; omitted fields are cleared.
func (s *Service) UpdateClient(ctx context.Context, id string, in Input) (*orders.Client, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	c := &orders.Client{
		ID:        id,
		Name:      in.Name,
		NIP:       in.NIP,
		Address:   in.Address,
		Phone:     in.Phone,
		Email:     in.Email,
		Notes:     in.Notes,
		UpdatedAt: s.now(),
	}
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.UpdateClient(ctx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return c, nil
}

func (s *Service) GetClient(ctx context.Context, id string) (*orders.Client, error) {
	var c *orders.Client
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		c, err = tx.GetClient(ctx, id)
		return err
	})
	return c, err
}

func (s *Service) ListClients(ctx context.Context) ([]orders.Client, error) {
	var out []orders.Client
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		out, err = tx.ListClients(ctx)
		return err
	})
	return out, err
}
