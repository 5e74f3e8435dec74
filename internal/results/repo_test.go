package results

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// repositoryContract exercises the behaviour every backend must share.
func repositoryContract(t *testing.T, repo Repository, rollNo string) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.FindByRollNo(ctx, rollNo)
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := repo.Upsert(ctx, sample(rollNo, "A", "B", "F").WithDerivedStatus())
	require.NoError(t, err)
	assert.True(t, created)

	replacement := sample(rollNo, "O").WithDerivedStatus()
	replacement.Name = "Asha K"
	created, err = repo.Upsert(ctx, replacement)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.FindByRollNo(ctx, rollNo)
	require.NoError(t, err)
	assert.Equal(t, "Asha K", got.Name)
	require.Len(t, got.Subjects, 1)
	assert.Equal(t, "O", got.Subjects[0].Grade)

	got, err = repo.FindByRollNoAndDOB(ctx, rollNo, "2000-01-01")
	require.NoError(t, err)
	assert.Equal(t, rollNo, got.RollNo)

	_, err = repo.FindByRollNoAndDOB(ctx, rollNo, "01/01/2000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Upsert(ctx, StudentRecord{})
	assert.ErrorIs(t, err, ErrRollNoRequired)
}

func TestMemoryRepositoryContract(t *testing.T) {
	repositoryContract(t, NewMemoryRepository(), "MEM-1")
}

func TestPostgresRepositoryContract(t *testing.T) {
	dsn := os.Getenv("RESULTPORTAL_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("RESULTPORTAL_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewPostgresRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	rollNo := "PG-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM students WHERE roll_no = $1`, rollNo) })

	repositoryContract(t, repo, rollNo)
}

func TestMongoRepositoryContract(t *testing.T) {
	uri := os.Getenv("RESULTPORTAL_TEST_MONGO_URL")
	if uri == "" {
		t.Skip("RESULTPORTAL_TEST_MONGO_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("resultportal_test")
	t.Cleanup(func() { _ = db.Drop(context.Background()) })
	repo := NewMongoRepository(db)
	require.NoError(t, repo.EnsureIndexes(ctx))

	repositoryContract(t, repo, "MG-1")
}
