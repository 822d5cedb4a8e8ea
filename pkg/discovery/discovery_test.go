package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/config"
)

type fakeEtcd struct {
	kv       map[string]string
	granted  int64
	revoked  []clientv3.LeaseID
	putErr   error
	keepDone chan *clientv3.LeaseKeepAliveResponse
}

func newFakeEtcd() *fakeEtcd {
	return &fakeEtcd{kv: make(map[string]string), keepDone: make(chan *clientv3.LeaseKeepAliveResponse)}
}

func (f *fakeEtcd) Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error) {
	f.granted = ttl
	return &clientv3.LeaseGrantResponse{ID: 42, TTL: ttl}, nil
}

func (f *fakeEtcd) KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	return f.keepDone, nil
}

func (f *fakeEtcd) Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	f.revoked = append(f.revoked, id)
	return &clientv3.LeaseRevokeResponse{}, nil
}

func (f *fakeEtcd) Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.kv[key] = val
	return &clientv3.PutResponse{}, nil
}

func (f *fakeEtcd) Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	delete(f.kv, key)
	return &clientv3.DeleteResponse{}, nil
}

func (f *fakeEtcd) Close() error {
	close(f.keepDone)
	return nil
}

func testConfig() *config.EtcdConfig {
	return &config.EtcdConfig{Endpoints: []string{"localhost:2379"}, Prefix: "/services/", LeaseTTL: 10}
}

func TestInstanceKey(t *testing.T) {
	instance := &ServiceInstance{Name: "storefront", Host: "10.0.0.5", Port: 5000}
	assert.Equal(t, "/services/storefront/10.0.0.5:5000", instanceKey("/services/", instance))
}

func TestRegisterAndDeregister(t *testing.T) {
	ctx := context.Background()
	etcd := newFakeEtcd()
	sd := newServiceDiscovery(etcd, testConfig(), zap.NewNop())
	instance := &ServiceInstance{Name: "storefront", Host: "10.0.0.5", Port: 5000}

	require.NoError(t, sd.Register(ctx, instance))
	assert.Equal(t, int64(10), etcd.granted)
	assert.Equal(t, map[string]string{"/services/storefront/10.0.0.5:5000": "10.0.0.5:5000"}, etcd.kv)

	require.NoError(t, sd.Deregister(ctx, instance))
	assert.Empty(t, etcd.kv)
	assert.Equal(t, []clientv3.LeaseID{42}, etcd.revoked)
	require.NoError(t, sd.Close())
}

func TestRegisterFailure(t *testing.T) {
	etcd := newFakeEtcd()
	etcd.putErr = errors.New("etcd unavailable")
	sd := newServiceDiscovery(etcd, testConfig(), zap.NewNop())

	err := sd.Register(context.Background(), &ServiceInstance{Name: "storefront", Host: "h", Port: 1})
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to register service")

	// no lease was kept, so nothing is revoked
	require.NoError(t, sd.Deregister(context.Background(), &ServiceInstance{Name: "storefront", Host: "h", Port: 1}))
	assert.Empty(t, etcd.revoked)
}
