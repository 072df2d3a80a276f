package nfse

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"

	"nfseBack/internal/nfse/authority"
	"nfseBack/internal/repositories"
)

// Logger provides minimal logging required by the NFSe module.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Deps groups external dependencies needed by the NFSe module.
type Deps struct {
	DB         *sql.DB
	Dialect    repositories.Dialect
	RDB        *redis.Client
	Logger     Logger
	Config     Config
	HTTPClient *http.Client
	module     *moduleState
}

// Validate ensures required dependencies are provided.
func (d *Deps) Validate() error {
	if d.DB == nil {
		return errors.New("nfse deps: DB is required")
	}
	if d.RDB == nil {
		return errors.New("nfse deps: RDB is required")
	}
	if d.Logger == nil {
		return errors.New("nfse deps: Logger is required")
	}
	if d.HTTPClient == nil {
		d.HTTPClient = authority.NewIPv4HTTPClient(authority.DefaultTimeout)
	}
	return nil
}
