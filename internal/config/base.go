package config

import (
	"fmt"
	"runtime"

	"github.com/nexusmmo/core/internal/crypto"
)

// Network holds the spec §6 keys common to every process: the listen
// socket, the worker topology, the DH prime, and the datastore roots.
type Network struct {
	Port             uint16   `yaml:"port"`
	ListenAddress    string   `yaml:"listen_address"` // "any" or an IP
	MultithreadMode  bool     `yaml:"multithread_mode"`
	DiffieHellmanKey string   `yaml:"diffie_hellman_key_pair"` // optional precomputed prime, hex
	DataStore        []string `yaml:"data_store"`
	ServerConstants  string   `yaml:"server_constants_path"`
}

// WorkerCount returns K, the number of extra workers beyond the fixed
// main/async pair (spec §5 "K additional workers where K defaults to
// max(hardware_concurrency() - 2, 1) or 1 if multithread mode is
// disabled").
func (n Network) WorkerCount() int {
	if !n.MultithreadMode {
		return 1
	}
	if k := runtime.NumCPU() - 2; k > 0 {
		return k
	}
	return 1
}

// BindAddress resolves ListenAddress to a net.Listen-compatible address.
// "any" (or empty) means "all interfaces".
func (n Network) BindAddress() string {
	if n.ListenAddress == "" || n.ListenAddress == "any" {
		return fmt.Sprintf(":%d", n.Port)
	}
	return fmt.Sprintf("%s:%d", n.ListenAddress, n.Port)
}

// DHParams resolves the configured or freshly generated DH parameters
// (spec §9 "treat it as optional in config; if absent generate at boot").
func (n Network) DHParams() (*crypto.DHParams, error) {
	if n.DiffieHellmanKey == "" {
		return crypto.GenerateDHParams()
	}
	return crypto.DHParamsFromHex(n.DiffieHellmanKey)
}

// Validate checks the keys spec §6 calls required.
func (n Network) Validate() error {
	if len(n.DataStore) == 0 {
		return fmt.Errorf("data_store: at least one path is required")
	}
	return nil
}

func defaultNetwork(port uint16) Network {
	return Network{
		Port:          port,
		ListenAddress: "any",
		DataStore:     []string{"data/"},
	}
}
