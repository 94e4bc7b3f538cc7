package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/admin"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/listing"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryOpener(svc *admin.Service) opener {
	return func(context.Context, bool) (*admin.Service, func() error, error) {
		return svc, func() error { return nil }, nil
	}
}

func execute(t *testing.T, svc *admin.Service, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(memoryOpener(svc), &out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	return &out, cmd.Execute()
}

func TestProductsAddAndList(t *testing.T) {
	svc := admin.NewService(repository.NewMemoryProductStore(), repository.NewMemoryAuditStore(), nil)

	out, err := execute(t, svc, "products", "add", "--name", "Lamp", "--category", "home", "--price", "19.99", "--actor", "ops")
	require.NoError(t, err)
	var created domain.Product
	require.NoError(t, json.Unmarshal(out.Bytes(), &created))
	assert.Equal(t, "Lamp", created.Name)
	assert.True(t, created.Active)

	_, err = execute(t, svc, "products", "add", "--name", "Chair", "--category", "office", "--price", "80")
	require.NoError(t, err)

	out, err = execute(t, svc, "products", "list", "--category", "home")
	require.NoError(t, err)
	var page listing.Page[domain.Product]
	require.NoError(t, json.Unmarshal(out.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, created.ID, page.Items[0].ID)

	out, err = execute(t, svc, "audit", "list", "--actor", "ops")
	require.NoError(t, err)
	var audit listing.Page[domain.AuditEntry]
	require.NoError(t, json.Unmarshal(out.Bytes(), &audit))
	require.Len(t, audit.Items, 1)
	assert.Equal(t, created.ID, audit.Items[0].EntityID)
}

func TestProductsList_InvalidFlags(t *testing.T) {
	svc := admin.NewService(repository.NewMemoryProductStore(), repository.NewMemoryAuditStore(), nil)

	_, err := execute(t, svc, "products", "list", "--page-size", "zero")
	assert.ErrorIs(t, err, admin.ErrInvalidQuery)

	_, err = execute(t, svc, "products", "add", "--price", "1")
	assert.Error(t, err)

	_, err = execute(t, svc, "products", "add", "--name", "X", "--price", "cheap")
	assert.Error(t, err)
}

func TestFlagName(t *testing.T) {
	assert.Equal(t, "min-price", flagName("min_price"))
	assert.Equal(t, "actor", flagName("actor"))
}
