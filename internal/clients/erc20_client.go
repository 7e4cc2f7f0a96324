package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"bridge-backend/internal/bridge"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// erc20ABI covers the calls the custody adapter needs.
const erc20ABI = `[
	{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"balanceOf","type":"function","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

// ERC20Client is an on-chain custody adapter: it moves the local asset as an
// ERC-20 token, signing transfers with the endpoint's key. Satisfies the
// bridge's custody interface for deployments where the custodied asset lives
// on an EVM chain rather than in the local account ledger.
type ERC20Client struct {
	client     *ethclient.Client
	parsedABI  abi.ABI
	token      common.Address
	chainID    *big.Int
	privateKey *ecdsa.PrivateKey
	from       common.Address
	gasLimit   uint64
}

// NewERC20Client dials the first reachable RPC endpoint and prepares the
// signer.
func NewERC20Client(rpcEndpoints []string, token string, chainID int64, privateKeyHex string, gasLimit uint64) (*ERC20Client, error) {
	var client *ethclient.Client
	var err error
	for _, endpoint := range rpcEndpoints {
		client, err = ethclient.Dial(endpoint)
		if err == nil {
			log.Printf("✅ Connected to EVM RPC: %s", endpoint)
			break
		}
		log.Printf("⚠️ Failed to connect to %s: %v", endpoint, err)
	}
	if client == nil {
		return nil, fmt.Errorf("no reachable RPC endpoint: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse ERC-20 ABI: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	if gasLimit == 0 {
		gasLimit = 100000
	}

	return &ERC20Client{
		client:     client,
		parsedABI:  parsedABI,
		token:      common.HexToAddress(token),
		chainID:    big.NewInt(chainID),
		privateKey: privateKey,
		from:       crypto.PubkeyToAddress(privateKey.PublicKey),
		gasLimit:   gasLimit,
	}, nil
}

// TransferFrom pulls amount from `from` into `to`. Requires a prior on-chain
// allowance for the endpoint key.
func (c *ERC20Client) TransferFrom(ctx context.Context, from, to string, amount *big.Int) error {
	data, err := c.parsedABI.Pack("transferFrom", common.HexToAddress(from), common.HexToAddress(to), amount)
	if err != nil {
		return fmt.Errorf("pack transferFrom: %w", err)
	}
	return c.submit(ctx, data)
}

// Transfer pushes amount from the endpoint's token balance to `to`.
func (c *ERC20Client) Transfer(ctx context.Context, to string, amount *big.Int) error {
	data, err := c.parsedABI.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return fmt.Errorf("pack transfer: %w", err)
	}
	return c.submit(ctx, data)
}

var (
	_ bridge.CustodyLedger  = (*ERC20Client)(nil)
	_ bridge.EmergencyVault = (*ERC20Client)(nil)
)

// Withdraw sweeps amount of the custodied token from the endpoint key's
// balance to a recovery account. The client manages a single token contract,
// so assetRef only labels the sweep; the managed token is what moves.
func (c *ERC20Client) Withdraw(ctx context.Context, assetRef, to string, amount *big.Int) error {
	log.Printf("🚨 Emergency withdrawal of %s %s to %s", amount.String(), assetRef, to)
	return c.Transfer(ctx, to, amount)
}

// BalanceOf reads the token balance of an account.
func (c *ERC20Client) BalanceOf(ctx context.Context, account string) (*big.Int, error) {
	data, err := c.parsedABI.Pack("balanceOf", common.HexToAddress(account))
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	result, err := c.client.CallContract(ctx, callMsg(c.token, data), nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	var balance *big.Int
	if err := c.parsedABI.UnpackIntoInterface(&balance, "balanceOf", result); err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	return balance, nil
}

// submit signs and sends a token call, then waits for the receipt. A reverted
// receipt is an error so the bridge sees either full application or clean
// failure.
func (c *ERC20Client) submit(ctx context.Context, data []byte) error {
	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, c.token, big.NewInt(0), c.gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("send transaction: %w", err)
	}
	log.Printf("🚀 Token transfer submitted: %s", signedTx.Hash().Hex())

	receipt, err := c.waitForReceipt(ctx, signedTx.Hash())
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", signedTx.Hash().Hex())
	}
	return nil
}

func (c *ERC20Client) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func callMsg(to common.Address, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{To: &to, Data: data}
}
