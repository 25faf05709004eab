package simchain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lpinvest/internal/ammmath"
	"github.com/vadiminshakov/lpinvest/internal/calldata"
	"github.com/vadiminshakov/lpinvest/internal/domain"
)

// Invoke executes cmd from account: Value of native asset moves to Target, then Data is applied to the
// pool or token deployed there. A failing command leaves no trace.
func (c *Chain) Invoke(ctx context.Context, account common.Address, cmd domain.Command) error {
	err := c.write(ctx, func(s *State) error {
		return s.execute(account, cmd)
	})
	if err != nil {
		c.l.Debug("command reverted",
			zap.String("account", account.Hex()),
			zap.Stringer("command", cmd),
			zap.Error(err))
	}
	return err
}

func (s *State) execute(account common.Address, cmd domain.Command) error {
	value := cmd.NativeValue()
	if !value.IsZero() {
		if err := transfer(s.Native, account, cmd.Target, value); err != nil {
			return errors.Wrap(err, "attach value")
		}
	}
	if len(cmd.Data) == 0 {
		return nil
	}

	call, err := calldata.Decode(cmd.Data)
	if err != nil {
		return errors.Wrapf(ErrReverted, "decode call to %s: %v", cmd.Target.Hex(), err)
	}

	if token, ok := s.Paired[cmd.Target]; ok {
		p := &poolCall{s: s, pool: cmd.Target, token: token, caller: account, value: value}
		return p.dispatch(call)
	}
	if l, ok := s.Tokens[cmd.Target]; ok {
		return tokenCall(l, account, value, call)
	}
	return errors.Wrapf(ErrReverted, "no contract at %s", cmd.Target.Hex())
}

func tokenCall(l *Ledger, caller common.Address, value *uint256.Int, call calldata.Call) error {
	if call.Method != calldata.MethodApprove {
		return errors.Wrapf(ErrReverted, "token does not accept %s", call.Method)
	}
	if !value.IsZero() {
		return errors.Wrap(ErrReverted, "approve is not payable")
	}
	spender, err := call.Address(0)
	if err != nil {
		return errors.Wrap(ErrReverted, err.Error())
	}
	amount, err := call.Uint(1)
	if err != nil {
		return errors.Wrap(ErrReverted, err.Error())
	}
	if l.Allowances[caller] == nil {
		l.Allowances[caller] = make(map[common.Address]*uint256.Int)
	}
	l.Allowances[caller][spender] = amount
	return nil
}

// poolCall applies one call to a token/native pool. Pricing follows the constant product exchange
// with a 0.3% fee; value has already been credited to the pool.
type poolCall struct {
	s      *State
	pool   common.Address
	token  common.Address
	caller common.Address
	value  *uint256.Int
}

func (p *poolCall) dispatch(call calldata.Call) error {
	args := make([]*uint256.Int, len(call.Args))
	for i := range call.Args {
		v, err := call.Uint(i)
		if err != nil {
			return errors.Wrap(ErrReverted, err.Error())
		}
		args[i] = v
	}

	switch call.Method {
	case calldata.MethodEthToTokenSwapOutput:
		return p.swapOutput(args[0], args[1])
	case calldata.MethodAddLiquidity:
		return p.addLiquidity(args[0], args[1], args[2])
	case calldata.MethodRemoveLiquidity:
		if !p.value.IsZero() {
			return errors.Wrap(ErrReverted, "removeLiquidity is not payable")
		}
		return p.removeLiquidity(args[0], args[1], args[2], args[3])
	default:
		return errors.Wrapf(ErrReverted, "pool does not accept %s", call.Method)
	}
}

func (p *poolCall) checkDeadline(deadline *uint256.Int) error {
	if deadline.Lt(uint256.NewInt(p.s.Time)) {
		return errors.Wrapf(ErrReverted, "deadline %s passed, chain time %d", deadline.Dec(), p.s.Time)
	}
	return nil
}

func (p *poolCall) tokens() *Ledger {
	return p.s.Tokens[p.token]
}

func (p *poolCall) shares() *Ledger {
	return p.s.Tokens[p.pool]
}

// nativeReserve is the pool's native balance before the attached value.
func (p *poolCall) nativeReserve() *uint256.Int {
	return new(uint256.Int).Sub(balance(p.s.Native, p.pool), p.value)
}

func (p *poolCall) swapOutput(tokensBought, deadline *uint256.Int) error {
	if err := p.checkDeadline(deadline); err != nil {
		return err
	}
	if tokensBought.IsZero() || p.value.IsZero() {
		return errors.Wrap(ErrReverted, "empty swap")
	}

	cost, err := ammmath.OutputPrice(tokensBought, p.nativeReserve(), balance(p.tokens().Balances, p.pool))
	if err != nil {
		return errors.Wrap(ErrReverted, err.Error())
	}
	if p.value.Lt(cost) {
		return errors.Wrapf(ErrReverted, "swap needs %s native, got %s", cost.Dec(), p.value.Dec())
	}

	if refund := new(uint256.Int).Sub(p.value, cost); !refund.IsZero() {
		if err := transfer(p.s.Native, p.pool, p.caller, refund); err != nil {
			return err
		}
	}
	return transfer(p.tokens().Balances, p.pool, p.caller, tokensBought)
}

func (p *poolCall) addLiquidity(minShares, maxTokens, deadline *uint256.Int) error {
	if err := p.checkDeadline(deadline); err != nil {
		return err
	}
	if maxTokens.IsZero() || p.value.IsZero() {
		return errors.Wrap(ErrReverted, "empty deposit")
	}

	total := p.shares().Supply
	tokenAmount := maxTokens.Clone()
	minted := balance(p.s.Native, p.pool)

	if !total.IsZero() {
		if minShares.IsZero() {
			return errors.Wrap(ErrReverted, "min shares must be positive")
		}
		nativeReserve := p.nativeReserve()
		proportional, err := ammmath.MulDiv(p.value, balance(p.tokens().Balances, p.pool), nativeReserve)
		if err != nil {
			return errors.Wrap(ErrReverted, err.Error())
		}
		if tokenAmount, err = ammmath.Add(proportional, uint256.NewInt(1)); err != nil {
			return err
		}
		if minted, err = ammmath.MulDiv(p.value, total, nativeReserve); err != nil {
			return errors.Wrap(ErrReverted, err.Error())
		}
		if maxTokens.Lt(tokenAmount) {
			return errors.Wrapf(ErrReverted, "deposit needs %s tokens, max %s", tokenAmount.Dec(), maxTokens.Dec())
		}
		if minted.Lt(minShares) {
			return errors.Wrapf(ErrReverted, "deposit mints %s shares, min %s", minted.Dec(), minShares.Dec())
		}
	}

	if err := spendAllowance(p.tokens(), p.caller, p.pool, tokenAmount); err != nil {
		return err
	}
	if err := transfer(p.tokens().Balances, p.caller, p.pool, tokenAmount); err != nil {
		return err
	}
	return mint(p.s, p.pool, p.caller, minted)
}

// removeLiquidity redeems shares for both reserves. Redeeming zero shares is a no-op.
func (p *poolCall) removeLiquidity(shares, minNative, minTokens, deadline *uint256.Int) error {
	if shares.IsZero() {
		return nil
	}
	if err := p.checkDeadline(deadline); err != nil {
		return err
	}

	total := p.shares().Supply
	if total.IsZero() {
		return errors.Wrap(ErrReverted, "pool has no liquidity")
	}
	nativeOut, err := ammmath.MulDiv(shares, balance(p.s.Native, p.pool), total)
	if err != nil {
		return err
	}
	tokenOut, err := ammmath.MulDiv(shares, balance(p.tokens().Balances, p.pool), total)
	if err != nil {
		return err
	}
	if nativeOut.Lt(minNative) || tokenOut.Lt(minTokens) {
		return errors.Wrapf(ErrReverted, "redemption of %s shares yields %s native and %s tokens",
			shares.Dec(), nativeOut.Dec(), tokenOut.Dec())
	}

	if err := burn(p.s, p.pool, p.caller, shares); err != nil {
		return err
	}
	if err := transfer(p.s.Native, p.pool, p.caller, nativeOut); err != nil {
		return err
	}
	return transfer(p.tokens().Balances, p.pool, p.caller, tokenOut)
}

func spendAllowance(l *Ledger, owner, spender common.Address, amount *uint256.Int) error {
	allowed := balance(l.Allowances[owner], spender)
	if allowed.Lt(amount) {
		return errors.Wrapf(ErrReverted, "allowance %s below %s", allowed.Dec(), amount.Dec())
	}
	if l.Allowances[owner] == nil {
		l.Allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	l.Allowances[owner][spender] = allowed.Sub(allowed, amount)
	return nil
}
