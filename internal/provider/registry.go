package provider

import (
	"fmt"
	"sync"

	"github.com/EditMySave/HyOS-sub001/internal/httpclient"
)

// Factory builds an unconfigured adapter.
type Factory func() Provider

var (
	mu        sync.RWMutex
	factories = make(map[ID]Factory)
)

// Register adds a provider factory to the global registry.
func Register(id ID, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[id] = f
}

// New returns a fresh, unconfigured adapter for id.
func New(id ID) (Provider, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return f(), nil
}

// List returns the registered provider IDs in priority order.
func List() []ID {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]ID, 0, len(factories))
	for _, id := range Order {
		if _, ok := factories[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Info is the public metadata of a provider.
type Info struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	AuthType    AuthType `json:"authType"`
	RequiresKey bool     `json:"requiresKey"`
}

// Describe returns metadata for every registered provider.
func Describe() []Info {
	var out []Info
	for _, id := range List() {
		p, err := New(id)
		if err != nil {
			continue
		}
		out = append(out, Info{ID: id, Name: p.Name(), AuthType: p.AuthType(), RequiresKey: p.RequiresKey()})
	}
	return out
}

// Resolver builds configured adapters on demand. Each call returns a new
// adapter, so concurrent requests never share credentials. Clients holds one
// client per provider so each provider draws on its own rate limit; Client
// serves providers without an entry.
type Resolver struct {
	Client   *httpclient.Client
	Clients  map[ID]*httpclient.Client
	BaseURLs map[ID]string
}

// Resolve returns an adapter for id configured with apiKey.
func (r *Resolver) Resolve(id ID, apiKey string) (Provider, error) {
	p, err := New(id)
	if err != nil {
		return nil, err
	}
	client := r.Clients[id]
	if client == nil {
		client = r.Client
	}
	if client == nil {
		client = httpclient.New()
	}
	p.Configure(apiKey, r.BaseURLs[id], client)
	return p, nil
}
