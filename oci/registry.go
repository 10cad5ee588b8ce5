package oci

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	clientsMu sync.RWMutex
	clients   = make(map[string]Client)
)

// Register makes a native client available to the driver under the given
// name. It panics on a nil client or a duplicate name, so bindings can
// register themselves from init.
func Register(name string, client Client) {
	clientsMu.Lock()
	defer clientsMu.Unlock()
	if client == nil {
		panic("oci: Register client is nil")
	}
	if _, dup := clients[name]; dup {
		panic("oci: Register called twice for client " + name)
	}
	clients[name] = client
}

// Unregister removes a registered client. Mainly useful in tests.
func Unregister(name string) {
	clientsMu.Lock()
	defer clientsMu.Unlock()
	delete(clients, name)
}

// Clients returns the sorted names of the registered clients.
func Clients() []string {
	clientsMu.RLock()
	defer clientsMu.RUnlock()
	return clientNames()
}

// Lookup resolves a registered client by name. The empty name resolves to
// the single registered client when exactly one exists.
func Lookup(name string) (Client, error) {
	clientsMu.RLock()
	defer clientsMu.RUnlock()

	if name == "" {
		if len(clients) == 1 {
			for _, client := range clients {
				return client, nil
			}
		}
		if len(clients) == 0 {
			return nil, fmt.Errorf("oci: no native client registered (forgotten import?)")
		}
		return nil, fmt.Errorf("oci: %d clients registered, the DSN must name one of %s",
			len(clients), strings.Join(clientNames(), ", "))
	}

	client, ok := clients[name]
	if !ok {
		return nil, fmt.Errorf("oci: unknown client %q (registered: %s)",
			name, strings.Join(clientNames(), ", "))
	}
	return client, nil
}

// clientNames is called with clientsMu held.
func clientNames() []string {
	list := make([]string, 0, len(clients))
	for name := range clients {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}
