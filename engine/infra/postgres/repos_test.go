package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/repcoach/repcoach/engine/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptionRepo(t *testing.T) {
	t.Run("Should fetch descriptions for a set of names", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		repo := NewDescriptionRepo(mock)
		now := time.Now().UTC()
		mock.ExpectQuery("SELECT (.+) FROM exercise_descriptions WHERE normalized_name IN").
			WithArgs("plank", "squat").
			WillReturnRows(mock.NewRows(descriptionColumns).
				AddRow("plank", "Plank", "Hold a straight line.", []byte(`[]`), now).
				AddRow("squat", "Squat", "Sit between your heels.", []byte(`["barbell"]`), now))

		got, err := repo.GetByNames(t.Context(), []string{"plank", "squat"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Squat", got[1].ExerciseName)
		assert.Equal(t, []string{"barbell"}, got[1].Equipment)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should skip the query for no names", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		got, err := NewDescriptionRepo(mock).GetByNames(t.Context(), nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should map missing rows to not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		mock.ExpectQuery("SELECT (.+) FROM exercise_descriptions").WithArgs("lunge").WillReturnError(pgx.ErrNoRows)

		_, err = NewDescriptionRepo(mock).Get(t.Context(), "lunge")
		assert.ErrorIs(t, err, store.ErrDescriptionNotFound)
	})

	t.Run("Should upsert on save", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		mock.ExpectExec("INSERT INTO exercise_descriptions (.+) ON CONFLICT").
			WithArgs("push_up", "Push Up", "Lower with control.", []byte(`[]`), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = NewDescriptionRepo(mock).Save(t.Context(), &store.ExerciseDescription{
			NormalizedName: "push_up",
			ExerciseName:   "Push Up",
			Description:    "Lower with control.",
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuditRepo(t *testing.T) {
	t.Run("Should record an entry with generated id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		mock.ExpectExec("INSERT INTO ai_request_logs").
			WithArgs(pgxmock.AnyArg(), "user-1", "chat", []byte(`{"a":1}`), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		entry := &store.AuditEntry{UserID: "user-1", Source: "chat", RequestPayload: []byte(`{"a":1}`)}

		require.NoError(t, NewAuditRepo(mock).Record(t.Context(), entry))
		assert.NotEmpty(t, entry.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should clamp the listing limit", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		mock.ExpectQuery("SELECT (.+) FROM ai_request_logs WHERE user_id = \\$1 ORDER BY created_at DESC LIMIT 500").
			WithArgs("user-1").
			WillReturnRows(mock.NewRows([]string{
				"id", "source", "request_payload", "response_payload", "error_message", "created_at",
			}).AddRow("log-1", "chat", []byte(`{}`), []byte(`{"text":"hi"}`), (*string)(nil), time.Now()))

		got, err := NewAuditRepo(mock).List(t.Context(), "user-1", 9000)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "log-1", got[0].ID)
		assert.Nil(t, got[0].ErrorMessage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepo(t *testing.T) {
	t.Run("Should upsert the user row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		mock.ExpectExec("INSERT INTO users (.+) ON CONFLICT \\(id\\)").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewUserRepo(mock).EnsureUser(t.Context(), "user-1", "a@b.co"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should reject an empty id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()
		assert.ErrorIs(t, NewUserRepo(mock).EnsureUser(t.Context(), "", ""), store.ErrUserRequired)
	})
}

func TestDSN(t *testing.T) {
	t.Run("Should prefer the explicit connection string", func(t *testing.T) {
		assert.Equal(t, "postgres://x", dsn(&Config{ConnString: "postgres://x", Host: "ignored"}))
	})

	t.Run("Should synthesize a DSN from parts", func(t *testing.T) {
		got := dsn(&Config{Host: "db", Port: "5432", User: "coach", Password: "p@ss", DBName: "repcoach"})
		assert.Equal(t, "postgres://coach:p%40ss@db:5432/repcoach?sslmode=disable", got)
	})
}
