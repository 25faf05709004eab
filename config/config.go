package config

import (
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/lpinvest/internal/domain"
)

const (
	NetworkSimulate = "simulate"
	NetworkEVM      = "evm"

	DefaultKeyEnv         = "LPINVEST_PRIVATE_KEY"
	DefaultWALDir         = "./wal"
	DefaultWebAddr        = ":8080"
	DefaultCertCacheDir   = "./certs"
	DefaultReceiptTimeout = 2 * time.Minute

	nativeDecimals = 18
	maxDecimals    = 77
)

// Token is a token the CLI and web server know by symbol.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals int32
}

// SimPool seeds a pool of a fresh simulated chain. Amounts are in base units.
type SimPool struct {
	Token         Token
	Pool          common.Address
	NativeReserve *uint256.Int
	TokenReserve  *uint256.Int
	AccountTokens *uint256.Int
}

// Simulation describes the initial state of the in-memory chain.
type Simulation struct {
	StateFile     string
	AccountNative *uint256.Int
	Pools         []SimPool
}

type Config struct {
	Network        string
	RPCURL         string
	ChainID        int64
	Registry       common.Address
	LockManager    common.Address
	Account        common.Address
	Caller         common.Address
	PrivateKeyEnv  string
	ReceiptTimeout time.Duration
	Tokens         []Token
	WALDir         string
	WebAddr        string
	TLSDomains     []string
	CertCacheDir   string
	Simulate       Simulation
}

type TokenTmp struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals int32  `yaml:"decimals"`
}

type SimPoolTmp struct {
	Token         string `yaml:"token"`
	Pool          string `yaml:"pool"`
	NativeReserve string `yaml:"native_reserve"`
	TokenReserve  string `yaml:"token_reserve"`
	AccountTokens string `yaml:"account_tokens,omitempty"`
}

type SimulationTmp struct {
	StateFile     string       `yaml:"state_file,omitempty"`
	AccountNative string       `yaml:"account_native,omitempty"`
	Pools         []SimPoolTmp `yaml:"pools,omitempty"`
}

// ConfigTmp is the yaml form of Config. Amounts of the simulate section are human-readable.
type ConfigTmp struct {
	Network        string        `yaml:"network"`
	RPCURL         string        `yaml:"rpc_url,omitempty"`
	ChainID        int64         `yaml:"chain_id,omitempty"`
	Registry       string        `yaml:"registry,omitempty"`
	LockManager    string        `yaml:"lock_manager,omitempty"`
	Account        string        `yaml:"account"`
	Caller         string        `yaml:"caller,omitempty"`
	PrivateKeyEnv  string        `yaml:"private_key_env,omitempty"`
	ReceiptTimeout time.Duration `yaml:"receipt_timeout,omitempty"`
	Tokens         []TokenTmp    `yaml:"tokens"`
	WALDir         string        `yaml:"wal_dir,omitempty"`
	WebAddr        string        `yaml:"web_addr,omitempty"`
	TLSDomains     []string      `yaml:"tls_domains,omitempty"`
	CertCacheDir   string        `yaml:"cert_cache_dir,omitempty"`
	Simulate       SimulationTmp `yaml:"simulate,omitempty"`
}

// Get parses global flags from args and returns the config together with the remaining arguments.
// With --config the yaml file is used and the other flags are ignored.
func Get(args []string) (Config, []string, error) {
	fs, values := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}

	var (
		cfg Config
		err error
	)
	if *values.config != "" {
		cfg, err = getYaml(*values.config)
	} else {
		cfg, err = values.toConfig()
	}
	if err != nil {
		return Config{}, nil, err
	}

	return cfg, fs.Args(), nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}

	return tmp.Parse()
}

// Parse converts the yaml form into a validated Config with defaults applied.
func (c ConfigTmp) Parse() (Config, error) {
	cfg := Config{
		Network:        strings.ToLower(strings.TrimSpace(c.Network)),
		RPCURL:         c.RPCURL,
		ChainID:        c.ChainID,
		PrivateKeyEnv:  c.PrivateKeyEnv,
		ReceiptTimeout: c.ReceiptTimeout,
		WALDir:         c.WALDir,
		WebAddr:        c.WebAddr,
		TLSDomains:     c.TLSDomains,
		CertCacheDir:   c.CertCacheDir,
	}

	var err error
	if cfg.Registry, err = parseOptionalAddress("registry", c.Registry); err != nil {
		return Config{}, err
	}
	if cfg.LockManager, err = parseOptionalAddress("lock_manager", c.LockManager); err != nil {
		return Config{}, err
	}
	if cfg.Account, err = parseOptionalAddress("account", c.Account); err != nil {
		return Config{}, err
	}
	if cfg.Caller, err = parseOptionalAddress("caller", c.Caller); err != nil {
		return Config{}, err
	}

	for _, t := range c.Tokens {
		addr, err := parseOptionalAddress("tokens.address", t.Address)
		if err != nil {
			return Config{}, err
		}
		cfg.Tokens = append(cfg.Tokens, Token{Symbol: strings.TrimSpace(t.Symbol), Address: addr, Decimals: t.Decimals})
	}

	if cfg.Simulate, err = c.Simulate.parse(cfg); err != nil {
		return Config{}, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (s SimulationTmp) parse(cfg Config) (Simulation, error) {
	sim := Simulation{StateFile: s.StateFile, AccountNative: new(uint256.Int)}

	if s.AccountNative != "" {
		v, err := domain.ParseAmount(s.AccountNative, nativeDecimals)
		if err != nil {
			return Simulation{}, errors.Wrap(err, "incorrect 'simulate.account_native' param in yaml config")
		}
		sim.AccountNative = v
	}

	for _, p := range s.Pools {
		token, err := cfg.Token(p.Token)
		if err != nil {
			return Simulation{}, errors.Wrapf(err, "incorrect 'simulate.pools.token' param %q", p.Token)
		}
		pool, err := parseOptionalAddress("simulate.pools.pool", p.Pool)
		if err != nil {
			return Simulation{}, err
		}
		native, err := parseOptionalAmount(p.NativeReserve, nativeDecimals)
		if err != nil {
			return Simulation{}, errors.Wrap(err, "incorrect 'simulate.pools.native_reserve' param")
		}
		tokens, err := parseOptionalAmount(p.TokenReserve, token.Decimals)
		if err != nil {
			return Simulation{}, errors.Wrap(err, "incorrect 'simulate.pools.token_reserve' param")
		}
		held, err := parseOptionalAmount(p.AccountTokens, token.Decimals)
		if err != nil {
			return Simulation{}, errors.Wrap(err, "incorrect 'simulate.pools.account_tokens' param")
		}

		sim.Pools = append(sim.Pools, SimPool{
			Token:         token,
			Pool:          pool,
			NativeReserve: native,
			TokenReserve:  tokens,
			AccountTokens: held,
		})
	}

	return sim, nil
}

func (c *Config) applyDefaults() {
	if c.Network == "" {
		c.Network = NetworkSimulate
	}
	if c.PrivateKeyEnv == "" {
		c.PrivateKeyEnv = DefaultKeyEnv
	}
	if c.ReceiptTimeout == 0 {
		c.ReceiptTimeout = DefaultReceiptTimeout
	}
	if c.WALDir == "" {
		c.WALDir = DefaultWALDir
	}
	if c.WebAddr == "" {
		c.WebAddr = DefaultWebAddr
	}
	if c.CertCacheDir == "" {
		c.CertCacheDir = DefaultCertCacheDir
	}
	if c.Simulate.AccountNative == nil {
		c.Simulate.AccountNative = new(uint256.Int)
	}
}

// Validate reports the first inconsistency of the config.
func (c Config) Validate() error {
	switch c.Network {
	case NetworkSimulate:
	case NetworkEVM:
		if c.RPCURL == "" {
			return errors.New("rpc_url is required for the evm network")
		}
		if c.ChainID <= 0 {
			return errors.Errorf("invalid chain_id %d", c.ChainID)
		}
		if c.Registry == (common.Address{}) {
			return errors.New("registry is required for the evm network")
		}
		if len(c.Simulate.Pools) > 0 {
			return errors.New("simulate pools are only allowed for the simulate network")
		}
	default:
		return errors.Errorf("unknown network %q, use %s or %s", c.Network, NetworkSimulate, NetworkEVM)
	}

	if c.Account == (common.Address{}) {
		return errors.New("account is required")
	}

	seen := make(map[string]struct{}, len(c.Tokens))
	for _, t := range c.Tokens {
		if t.Symbol == "" {
			return errors.Errorf("token %s has no symbol", t.Address.Hex())
		}
		if t.Address == (common.Address{}) {
			return errors.Errorf("token %s has no address", t.Symbol)
		}
		if t.Decimals < 0 || t.Decimals > maxDecimals {
			return errors.Errorf("token %s has invalid decimals %d", t.Symbol, t.Decimals)
		}
		key := strings.ToUpper(t.Symbol)
		if _, ok := seen[key]; ok {
			return errors.Errorf("token %s is listed twice", t.Symbol)
		}
		seen[key] = struct{}{}
	}

	pools := make(map[common.Address]struct{}, len(c.Simulate.Pools))
	for _, p := range c.Simulate.Pools {
		if p.Pool == (common.Address{}) {
			return errors.Errorf("simulated pool of %s has no address", p.Token.Symbol)
		}
		if _, ok := pools[p.Pool]; ok {
			return errors.Errorf("simulated pool %s is listed twice", p.Pool.Hex())
		}
		pools[p.Pool] = struct{}{}
	}

	return nil
}

// Token resolves a token by symbol (case-insensitive) or by hex address. Addresses that are not
// listed resolve to a token with 18 decimals named by its address.
func (c Config) Token(ref string) (Token, error) {
	ref = strings.TrimSpace(ref)
	for _, t := range c.Tokens {
		if strings.EqualFold(t.Symbol, ref) {
			return t, nil
		}
	}

	if !common.IsHexAddress(ref) {
		return Token{}, errors.Errorf("unknown token %q", ref)
	}
	addr := common.HexToAddress(ref)
	for _, t := range c.Tokens {
		if t.Address == addr {
			return t, nil
		}
	}
	return Token{Symbol: addr.Hex(), Address: addr, Decimals: nativeDecimals}, nil
}

// TokenAddresses returns the addresses of all listed tokens in config order.
func (c Config) TokenAddresses() []common.Address {
	out := make([]common.Address, 0, len(c.Tokens))
	for _, t := range c.Tokens {
		out = append(out, t.Address)
	}
	return out
}

// Decimals maps listed token addresses to their decimals.
func (c Config) Decimals() map[common.Address]int32 {
	out := make(map[common.Address]int32, len(c.Tokens))
	for _, t := range c.Tokens {
		out[t.Address] = t.Decimals
	}
	return out
}

func parseOptionalAddress(name, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.Errorf("incorrect '%s' param: %q is not an address", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseOptionalAmount(raw string, decimals int32) (*uint256.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return new(uint256.Int), nil
	}
	return domain.ParseAmount(strings.TrimSpace(raw), decimals)
}
