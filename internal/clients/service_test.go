package clients_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/clients"
	"github.com/TworzymyMarzenia3d/front-crm/internal/logger"
	"github.com/TworzymyMarzenia3d/front-crm/internal/memstore"
	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
)

func newService() *clients.Service {
	return &clients.Service{Store: memstore.New(), Log: logger.Discard()}
}

func TestCreateClientTrimsFields(t *testing.T) {
	s := newService()
	c, err := s.CreateClient(context.Background(), clients.Input{
		Name: "  Drukarnia Nowak ", NIP: " 525-000-00-00 ", Email: "biuro@nowak.pl",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Name != "Drukarnia Nowak" || c.NIP != "525-000-00-00" || c.ID == "" {
		t.Fatalf("client = %+v", c)
	}
	got, err := s.GetClient(context.Background(), c.ID)
	if err != nil || got.Email != "biuro@nowak.pl" {
		t.Fatalf("get = %+v, %v", got, err)
	}
}

func TestCreateClientValidation(t *testing.T) {
	s := newService()
	cases := []struct {
		name string
		in   clients.Input
	}{
		{"no name", clients.Input{Name: "  "}},
		{"bad email", clients.Input{Name: "A", Email: "not-an-address"}},
		{"display name email", clients.Input{Name: "A", Email: "Jan <jan@example.com>"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.CreateClient(context.Background(), tc.in); !errors.Is(err, orders.ErrValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}
}

func TestUpdateClientKeepsCreatedAt(t *testing.T) {
	s := newService()
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return t0 }
	c, err := s.CreateClient(ctx, clients.Input{Name: "Old name", Phone: "123"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	s.Now = func() time.Time { return t0.Add(time.Hour) }
	got, err := s.UpdateClient(ctx, c.ID, clients.Input{Name: "New name"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "New name" || got.Phone != "" || !got.CreatedAt.Equal(t0) || !got.UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("updated = %+v", got)
	}

	if _, err := s.UpdateClient(ctx, "missing", clients.Input{Name: "x"}); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("unknown client: err = %v", err)
	}
}

func TestListClientsByName(t *testing.T) {
	s := newService()
	ctx := context.Background()
	for _, n := range []string{"Zeta", "Alfa", "Mu"} {
		if _, err := s.CreateClient(ctx, clients.Input{Name: n}); err != nil {
			t.Fatalf("create %s: %v", n, err)
		}
	}
	list, err := s.ListClients(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Name != "Alfa" || list[2].Name != "Zeta" {
		t.Fatalf("list = %+v", list)
	}
}
