package postgres

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_HealthCheck(t *testing.T) {
	schemaCheck := regexp.QuoteMeta(schemaCheckQuery)

	t.Run("Should pass when the programs table exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		mock.ExpectQuery(schemaCheck).WillReturnRows(mock.NewRows([]string{"migrated"}).AddRow(true))

		require.NoError(t, newStore(mock, time.Second).HealthCheck(t.Context()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should report a missing schema", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		mock.ExpectQuery(schemaCheck).WillReturnRows(mock.NewRows([]string{"migrated"}).AddRow(false))

		err = newStore(mock, 0).HealthCheck(t.Context())
		assert.ErrorIs(t, err, ErrSchemaMissing)
	})

	t.Run("Should wrap connection failures", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		down := errors.New("connection refused")
		mock.ExpectQuery(schemaCheck).WillReturnError(down)

		err = newStore(mock, time.Second).HealthCheck(t.Context())
		assert.ErrorIs(t, err, down)
		assert.ErrorContains(t, err, "health check failed")
	})
}

func TestApplyPoolSettings(t *testing.T) {
	parse := func(t *testing.T) *pgxpool.Config {
		t.Helper()
		poolCfg, err := pgxpool.ParseConfig("postgres://coach@localhost:5432/repcoach")
		require.NoError(t, err)
		return poolCfg
	}

	t.Run("Should apply defaults for unset fields", func(t *testing.T) {
		poolCfg := parse(t)
		applyPoolSettings(&Config{}, poolCfg)
		assert.Equal(t, int32(defaultMaxConns), poolCfg.MaxConns)
		assert.Equal(t, int32(0), poolCfg.MinConns)
		assert.Equal(t, defaultHealthCheckPeriod, poolCfg.HealthCheckPeriod)
		assert.Equal(t, defaultConnectTimeout, poolCfg.ConnConfig.ConnectTimeout)
	})

	t.Run("Should cap the idle minimum at the maximum", func(t *testing.T) {
		poolCfg := parse(t)
		applyPoolSettings(&Config{
			MaxOpenConns:    4,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: time.Minute,
		}, poolCfg)
		assert.Equal(t, int32(4), poolCfg.MaxConns)
		assert.Equal(t, int32(4), poolCfg.MinConns)
		assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
		assert.Equal(t, time.Minute, poolCfg.MaxConnIdleTime)
	})
}
