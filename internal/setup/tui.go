package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/lpinvest/config"
)

// DefaultConfigFile is where the wizard writes the generated config.
const DefaultConfigFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers collects the wizard input before it is turned into a config.
type answers struct {
	network       string
	rpcURL        string
	chainID       string
	registry      string
	lockManager   string
	keyEnv        string
	account       string
	caller        string
	tokenSymbol   string
	tokenAddress  string
	tokenDecimals string
	pool          string
	nativeReserve string
	tokenReserve  string
	accountTokens string
	accountNative string
	stateFile     string
	walDir        string
	webAddr       string
}

func defaultAnswers() answers {
	return answers{
		network:       config.NetworkSimulate,
		keyEnv:        config.DefaultKeyEnv,
		tokenDecimals: "18",
		nativeReserve: "500",
		tokenReserve:  "1000",
		accountTokens: "40",
		accountNative: "1000",
		walDir:        config.DefaultWALDir,
		webAddr:       config.DefaultWebAddr,
	}
}

func step(title string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("LPINVEST CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(title))
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	a := defaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("LPINVEST CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Put idle tokens of your account to work in a liquidity pool.\n"))

	fmt.Println(stepStyle.Render("STEP 1: NETWORK"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where do the account and pools live?").
				Options(
					huh.NewOption("Simulation (in-memory chain)", config.NetworkSimulate),
					huh.NewOption("EVM network (JSON-RPC)", config.NetworkEVM),
				).
				Value(&a.network),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 2: CONNECTION")
	if a.network == config.NetworkEVM {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("RPC URL").
					Value(&a.rpcURL).
					Validate(validateNotEmpty("rpc url")),
				huh.NewInput().
					Title("Chain ID").
					Value(&a.chainID).
					Validate(validateChainID),
				huh.NewInput().
					Title("Pool registry address").
					Value(&a.registry).
					Validate(validateAddress),
				huh.NewInput().
					Title("Lock manager address").
					Description("Leave empty if accounts are never locked").
					Value(&a.lockManager).
					Validate(validateOptionalAddress),
				huh.NewInput().
					Title("Private key environment variable").
					Value(&a.keyEnv).
					Validate(validateNotEmpty("environment variable")),
			),
		).Run()
	} else {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("State file").
					Description("Leave empty for the default location").
					Value(&a.stateFile),
				huh.NewInput().
					Title("Native balance of the account").
					Value(&a.accountNative).
					Validate(validateAmount),
			),
		).Run()
	}
	if err != nil {
		return err
	}

	step("STEP 3: ACCOUNT")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Account address").
				Value(&a.account).
				Validate(validateAddress),
			huh.NewInput().
				Title("Caller address").
				Description("Owner the requests are made as, empty means the key address").
				Value(&a.caller).
				Validate(validateOptionalAddress),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 4: TOKEN")
	fields := []huh.Field{
		huh.NewInput().
			Title("Token symbol").
			Value(&a.tokenSymbol).
			Validate(validateNotEmpty("symbol")),
		huh.NewInput().
			Title("Token address").
			Value(&a.tokenAddress).
			Validate(validateAddress),
		huh.NewInput().
			Title("Token decimals").
			Value(&a.tokenDecimals).
			Validate(validateDecimals),
	}
	if a.network == config.NetworkSimulate {
		fields = append(fields,
			huh.NewInput().
				Title("Pool address").
				Value(&a.pool).
				Validate(validateAddress),
			huh.NewInput().
				Title("Pool native reserve").
				Value(&a.nativeReserve).
				Validate(validateAmount),
			huh.NewInput().
				Title("Pool token reserve").
				Value(&a.tokenReserve).
				Validate(validateAmount),
			huh.NewInput().
				Title("Tokens held by the account").
				Value(&a.accountTokens).
				Validate(validateAmount),
		)
	}
	if err = huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}

	step("STEP 5: SERVER")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Event journal directory").
				Value(&a.walDir).
				Validate(validateNotEmpty("directory")),
			huh.NewInput().
				Title("Web server address").
				Value(&a.webAddr).
				Validate(validateNotEmpty("address")),
		),
	).Run()
	if err != nil {
		return err
	}

	step("FINAL CONFIRMATION")
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(a.summary()))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	tmp, err := a.configTmp()
	if err != nil {
		return err
	}
	if err := WriteConfig(path, tmp); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	time.Sleep(time.Second)
	return nil
}

func (a answers) summary() string {
	return fmt.Sprintf(
		"Network: %s\nAccount: %s\nToken: %s (%s)\nJournal: %s\nWeb: %s\n",
		a.network, a.account, a.tokenSymbol, a.tokenAddress, a.walDir, a.webAddr,
	)
}

func (a answers) configTmp() (config.ConfigTmp, error) {
	decimals, err := strconv.ParseInt(strings.TrimSpace(a.tokenDecimals), 10, 32)
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "token decimals")
	}

	tmp := config.ConfigTmp{
		Network: a.network,
		Account: a.account,
		Caller:  a.caller,
		Tokens: []config.TokenTmp{{
			Symbol:   a.tokenSymbol,
			Address:  a.tokenAddress,
			Decimals: int32(decimals),
		}},
		WALDir:  a.walDir,
		WebAddr: a.webAddr,
	}

	if a.network == config.NetworkEVM {
		chainID, err := strconv.ParseInt(strings.TrimSpace(a.chainID), 10, 64)
		if err != nil {
			return config.ConfigTmp{}, errors.Wrap(err, "chain id")
		}
		tmp.RPCURL = a.rpcURL
		tmp.ChainID = chainID
		tmp.Registry = a.registry
		tmp.LockManager = a.lockManager
		tmp.PrivateKeyEnv = a.keyEnv
		return tmp, nil
	}

	tmp.Simulate = config.SimulationTmp{
		StateFile:     a.stateFile,
		AccountNative: a.accountNative,
		Pools: []config.SimPoolTmp{{
			Token:         a.tokenSymbol,
			Pool:          a.pool,
			NativeReserve: a.nativeReserve,
			TokenReserve:  a.tokenReserve,
			AccountTokens: a.accountTokens,
		}},
	}
	return tmp, nil
}

// WriteConfig validates tmp and writes it to path as yaml.
func WriteConfig(path string, tmp config.ConfigTmp) error {
	if _, err := tmp.Parse(); err != nil {
		return errors.Wrap(err, "generated config is invalid")
	}

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

func validateNotEmpty(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", what)
		}
		return nil
	}
}

func validateAddress(s string) error {
	if !common.IsHexAddress(strings.TrimSpace(s)) {
		return fmt.Errorf("must be a 0x-prefixed address")
	}
	return nil
}

func validateOptionalAddress(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return validateAddress(s)
}

func validateChainID(s string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateDecimals(s string) error {
	d, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || d < 0 || d > 77 {
		return fmt.Errorf("must be between 0 and 77")
	}
	return nil
}

func validateAmount(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}
