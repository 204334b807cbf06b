package server

import (
	"fmt"
	"io"

	"github.com/gridsnake/engine/controller"
	"github.com/gridsnake/engine/controller/filestore"
	"github.com/gridsnake/engine/controller/redis"
	"github.com/gridsnake/engine/controller/sqlstore"
	log "github.com/sirupsen/logrus"
)

// openStore builds the named backend. The returned func closes it.
func openStore(backend, args string) (controller.Store, func(), error) {
	var store controller.Store
	switch backend {
	case "inmem":
		store = controller.InMemStore()
	case "file":
		store = filestore.NewFileStore(args)
	case "redis":
		s, err := redis.NewStore(args)
		if err != nil {
			return nil, nil, err
		}
		store = s
	case "sql":
		s, err := sqlstore.NewSQLStore(args)
		if err != nil {
			return nil, nil, err
		}
		store = s
	default:
		return nil, nil, fmt.Errorf("invalid backend %q", backend)
	}

	return store, func() {
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.WithError(err).Error("unable to close store")
			}
		}
	}, nil
}
