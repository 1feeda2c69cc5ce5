package mocks

import (
	"context"
	"iter"

	"github.com/UnknownOlympus/geotweet/internal/models"
	"github.com/stretchr/testify/mock"
)

// Store is a mock type for the cache.Store type.
type Store struct {
	mock.Mock
}

// Lookup provides a mock function with given fields: ctx, key
func (_m *Store) Lookup(ctx context.Context, key string) (*models.CacheEntry, error) {
	ret := _m.Called(ctx, key)

	if len(ret) == 0 {
		panic("no return value specified for Lookup")
	}

	var r0 *models.CacheEntry
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.CacheEntry)
	}

	return r0, ret.Error(1)
}

// RecordHit provides a mock function with given fields: ctx, key
func (_m *Store) RecordHit(ctx context.Context, key string) error {
	ret := _m.Called(ctx, key)

	if len(ret) == 0 {
		panic("no return value specified for RecordHit")
	}

	return ret.Error(0)
}

// Upsert provides a mock function with given fields: ctx, key, lat, lng
func (_m *Store) Upsert(ctx context.Context, key string, lat float64, lng float64) error {
	ret := _m.Called(ctx, key, lat, lng)

	if len(ret) == 0 {
		panic("no return value specified for Upsert")
	}

	return ret.Error(0)
}

// Size provides a mock function with given fields: ctx
func (_m *Store) Size(ctx context.Context) (int, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Size")
	}

	return ret.Int(0), ret.Error(1)
}

// All provides a mock function with given fields: ctx
func (_m *Store) All(ctx context.Context) iter.Seq2[models.CacheEntry, error] {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for All")
	}

	if ret.Get(0) == nil {
		return func(func(models.CacheEntry, error) bool) {}
	}

	return ret.Get(0).(iter.Seq2[models.CacheEntry, error])
}

// Ping provides a mock function with given fields: ctx
func (_m *Store) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Ping")
	}

	return ret.Error(0)
}

// Close provides a mock function with no fields
func (_m *Store) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	return ret.Error(0)
}

// NewStore creates a new instance of Store. It also registers a testing interface on the mock
// and a cleanup function to assert the mocks expectations.
func NewStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *Store {
	m := &Store{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
