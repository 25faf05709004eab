package config

import (
	"flag"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

type flagValues struct {
	config         *string
	network        *string
	rpcURL         *string
	chainID        *int64
	registry       *string
	lockManager    *string
	account        *string
	caller         *string
	keyEnv         *string
	receiptTimeout *time.Duration
	tokens         *string
	walDir         *string
	webAddr        *string
	tlsDomains     *string
	certCache      *string
	simState       *string
}

func newFlagSet() (*flag.FlagSet, *flagValues) {
	fs := flag.NewFlagSet("lpinvest", flag.ContinueOnError)
	v := &flagValues{
		config:         fs.String("config", "", "path to yaml config"),
		network:        fs.String("network", NetworkSimulate, "chain to use: simulate or evm"),
		rpcURL:         fs.String("rpc", "", "json-rpc endpoint of the evm network"),
		chainID:        fs.Int64("chainid", 0, "chain id of the evm network"),
		registry:       fs.String("registry", "", "address of the pool registry"),
		lockManager:    fs.String("lockmanager", "", "address of the account lock manager"),
		account:        fs.String("account", "", "address of the managed account"),
		caller:         fs.String("caller", "", "address the requests are made from, defaults to the key address"),
		keyEnv:         fs.String("keyenv", DefaultKeyEnv, "environment variable holding the hex private key"),
		receiptTimeout: fs.Duration("receipttimeout", DefaultReceiptTimeout, "how long to wait for a transaction receipt"),
		tokens:         fs.String("tokens", "", "known tokens, example: DAI:0x6B17...1d0F:18,USDC:0xA0b8...eB48:6"),
		walDir:         fs.String("waldir", DefaultWALDir, "directory of the event journal"),
		webAddr:        fs.String("webaddr", DefaultWebAddr, "listen address of the web server"),
		tlsDomains:     fs.String("tlsdomains", "", "comma separated domains for automatic TLS"),
		certCache:      fs.String("certcache", DefaultCertCacheDir, "directory for TLS certificates"),
		simState:       fs.String("simstate", "", "state file of the simulated chain"),
	}
	return fs, v
}

func (v *flagValues) toConfig() (Config, error) {
	tokens, err := parseTokenList(*v.tokens)
	if err != nil {
		return Config{}, errors.Wrapf(err, "invalid --tokens provided, --tokens=%s", *v.tokens)
	}

	return ConfigTmp{
		Network:        *v.network,
		RPCURL:         *v.rpcURL,
		ChainID:        *v.chainID,
		Registry:       *v.registry,
		LockManager:    *v.lockManager,
		Account:        *v.account,
		Caller:         *v.caller,
		PrivateKeyEnv:  *v.keyEnv,
		ReceiptTimeout: *v.receiptTimeout,
		Tokens:         tokens,
		WALDir:         *v.walDir,
		WebAddr:        *v.webAddr,
		TLSDomains:     splitList(*v.tlsDomains),
		CertCacheDir:   *v.certCache,
		Simulate:       SimulationTmp{StateFile: *v.simState},
	}.Parse()
}

func parseTokenList(raw string) ([]TokenTmp, error) {
	var out []TokenTmp
	for _, item := range splitList(raw) {
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, errors.Errorf("token %q must look like SYMBOL:ADDRESS:DECIMALS", item)
		}
		decimals, err := strconv.ParseInt(parts[2], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "token %q has invalid decimals", item)
		}
		out = append(out, TokenTmp{Symbol: parts[0], Address: parts[1], Decimals: int32(decimals)})
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
