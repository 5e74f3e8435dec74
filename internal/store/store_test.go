package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func TestRedisHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(mr.Addr())
	defer r.Close()
	assert.True(t, r.Healthy(context.Background()))

	mr.Close()
	assert.False(t, r.Healthy(context.Background()))

	var nilRedis *Redis
	assert.False(t, nilRedis.Healthy(context.Background()))
}

func TestMissingConnectionStrings(t *testing.T) {
	_, err := NewDB(context.Background(), "")
	assert.Error(t, err)

	_, err = NewMongo(context.Background(), "", "results")
	assert.Error(t, err)

	var db *DB
	assert.False(t, db.Healthy(context.Background()))
	assert.NoError(t, db.Close())
}
