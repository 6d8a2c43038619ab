package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"CartCast/internal/cart"
	"CartCast/internal/config"
)

func TestOpenStore_Drivers(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		cfg  config.Store
		want string
	}{
		{name: "memory", cfg: config.Store{Driver: config.DriverMemory}, want: "*cart.MemStore"},
		{name: "file", cfg: func() config.Store {
			s := config.Store{Driver: config.DriverFile}
			s.File.Dir = filepath.Join(t.TempDir(), "carts")
			return s
		}(), want: "*cart.FileStore"},
		{name: "cached memory", cfg: func() config.Store {
			s := config.Store{Driver: config.DriverMemory}
			s.Cache.Size = 16
			return s
		}(), want: "*cart.CachedStore"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, closeFn, err := openStore(tc.cfg)
			if err != nil {
				t.Fatalf("openStore: %v", err)
			}
			defer closeFn()

			if got := fmt.Sprintf("%T", store); got != tc.want {
				t.Fatalf("store=%s want=%s", got, tc.want)
			}

			if err := store.Save(ctx, "s1", cart.Cart{Items: []cart.Item{{ID: "1", Name: "Widget", Price: 1, Quantity: 1}}}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			c, err := store.Load(ctx, "s1")
			if err != nil || len(c.Items) != 1 {
				t.Fatalf("Load=%+v err=%v", c, err)
			}
		})
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, _, err := openStore(config.Store{Driver: "redis"})
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("err=%v want unknown driver", err)
	}
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	t.Setenv("CARTD_STORE_DRIVER", "memory")

	err := migrate(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Fatalf("err=%v want driver error", err)
	}
}
