package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	bind "github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// Config holds the chain client parameters.
type Config struct {
	RPCURL string
	// Confirmations is how many blocks a transaction must be buried under
	// before Wait returns. Minimum 1 (the mined block itself).
	Confirmations int
}

// Client implements domain.ChainClient over a JSON-RPC endpoint. Reads are
// eth_call against packed ABIs; writes are signed locally and submitted via
// eth_sendRawTransaction.
type Client struct {
	eth           *ethclient.Client
	signer        *Signer
	confirmations int
	router        string // futarchy router address, set via BindRouter
	logger        *slog.Logger
}

// Dial connects to the RPC endpoint and returns a Client bound to the
// signer's wallet.
func Dial(ctx context.Context, cfg Config, signer *Signer, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dialing %s: %w", cfg.RPCURL, err)
	}
	conf := cfg.Confirmations
	if conf < 1 {
		conf = 1
	}
	return &Client{
		eth:           eth,
		signer:        signer,
		confirmations: conf,
		logger:        logger.With(slog.String("component", "chain")),
	}, nil
}

// Owner returns the connected wallet address.
func (c *Client) Owner() string {
	return c.signer.Address().Hex()
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// call performs an eth_call against the given contract and unpacks the
// outputs of method.
func (c *Client) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: packing %s: %w", method, err)
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: calling %s on %s: %w", method, contract.Hex(), err)
	}
	vals, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("chain: unpacking %s result: %w", method, err)
	}
	return vals, nil
}

// transact builds, signs, and submits one transaction carrying data to the
// contract. The returned handle waits for confirmation separately so callers
// control exactly when each transaction must be mined before the next begins.
func (c *Client) transact(ctx context.Context, contract common.Address, data []byte) (domain.TxHandle, error) {
	from := c.signer.Address()

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("chain: fetching nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggesting gas price: %w", err)
	}
	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &contract,
		Data: data,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("chain: estimating gas: %w", err))
	}
	// Pad the estimate; contracts whose gas use depends on state can need
	// slightly more at execution time than at estimation time.
	gasLimit = gasLimit + gasLimit/5

	tx := types.NewTransaction(nonce, contract, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := c.signer.SignTx(tx)
	if err != nil {
		return nil, classify(err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, classify(fmt.Errorf("chain: sending transaction: %w", err))
	}

	c.logger.Debug("transaction submitted",
		slog.String("to", contract.Hex()),
		slog.String("tx", signed.Hash().Hex()),
	)
	return &txHandle{client: c, tx: signed}, nil
}

// txHandle implements domain.TxHandle for a submitted transaction.
type txHandle struct {
	client *Client
	tx     *types.Transaction
}

func (h *txHandle) Hash() string {
	return h.tx.Hash().Hex()
}

// Wait blocks until the transaction is mined and buried under the configured
// number of confirmations, then returns the receipt.
func (h *txHandle) Wait(ctx context.Context) (*domain.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, h.client.eth, h.tx.Hash())
	if err != nil {
		return nil, fmt.Errorf("chain: waiting for %s: %w", h.Hash(), err)
	}
	if h.client.confirmations > 1 {
		if err := h.client.awaitDepth(ctx, receipt.BlockNumber.Uint64()); err != nil {
			return nil, err
		}
	}
	return &domain.Receipt{
		TxHash:      receipt.TxHash.Hex(),
		Status:      receipt.Status,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// awaitDepth polls the head until minedAt is buried under the configured
// confirmation depth.
func (c *Client) awaitDepth(ctx context.Context, minedAt uint64) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	need := uint64(c.confirmations - 1)
	for {
		head, err := c.eth.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("chain: fetching head: %w", err)
		}
		if head >= minedAt+need {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// classify maps wallet/provider error text onto the domain sentinels so the
// orchestrators can distinguish a user decline from an on-chain failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user denied"),
		strings.Contains(msg, "user rejected"),
		strings.Contains(msg, "request rejected"):
		return fmt.Errorf("%w: %s", domain.ErrUserRejected, err.Error())
	case strings.Contains(msg, "execution reverted"):
		return fmt.Errorf("%w: %s", domain.ErrTxReverted, err.Error())
	default:
		return err
	}
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chain: invalid ABI: %v", err))
	}
	return parsed
}
