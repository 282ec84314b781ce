package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// TronNodeAPI is the slice of a TRON full node's wallet HTTP API the
// facilitator needs: building transfers, broadcasting them, and reading
// transaction info.
type TronNodeAPI interface {
	CreateTransaction(ctx context.Context, ownerHex, toHex string, amount *big.Int) (*TronTransaction, error)
	TriggerSmartContract(ctx context.Context, contractHex, ownerHex, selector, parameter string, feeLimit int64) (*TronTransaction, error)
	BroadcastTransaction(ctx context.Context, tx *TronTransaction) error
	GetTransactionInfo(ctx context.Context, txID string) (*TronTransactionInfo, error)
}

// TronTransaction is an unsigned or signed transaction as the node
// represents it. The facilitator signs sha256(raw_data) and attaches the
// signature before broadcasting.
type TronTransaction struct {
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex"`
	Signature  []string        `json:"signature,omitempty"`
	Visible    bool            `json:"visible,omitempty"`
}

// TronTransactionInfo is the node's post-execution view of a transaction.
// Receipt.Result is only populated for contract transactions.
type TronTransactionInfo struct {
	ID          string `json:"id"`
	BlockNumber int64  `json:"blockNumber"`
	Receipt     struct {
		Result    string `json:"result"`
		EnergyFee int64  `json:"energy_fee"`
	} `json:"receipt"`
	ResMessage string `json:"resMessage"`
}

type httpTronNode struct {
	baseURL string
	client  *http.Client
}

func newHTTPTronNode(baseURL string) *httpTronNode {
	return &httpTronNode{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (n *httpTronNode) CreateTransaction(ctx context.Context, ownerHex, toHex string, amount *big.Int) (*TronTransaction, error) {
	req := map[string]any{
		"owner_address": ownerHex,
		"to_address":    toHex,
		"amount":        amount.Int64(),
	}

	var tx TronTransaction
	if err := n.post(ctx, "/wallet/createtransaction", req, &tx); err != nil {
		return nil, err
	}
	if tx.TxID == "" {
		return nil, fmt.Errorf("node did not return a transaction")
	}
	return &tx, nil
}

func (n *httpTronNode) TriggerSmartContract(ctx context.Context, contractHex, ownerHex, selector, parameter string, feeLimit int64) (*TronTransaction, error) {
	req := map[string]any{
		"contract_address":  contractHex,
		"owner_address":     ownerHex,
		"function_selector": selector,
		"parameter":         parameter,
		"fee_limit":         feeLimit,
		"call_value":        0,
	}

	var resp struct {
		Result struct {
			Result  bool   `json:"result"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"result"`
		Transaction *TronTransaction `json:"transaction"`
	}
	if err := n.post(ctx, "/wallet/triggersmartcontract", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Result.Result || resp.Transaction == nil {
		return nil, fmt.Errorf("trigger rejected: %s %s", resp.Result.Code, resp.Result.Message)
	}
	return resp.Transaction, nil
}

func (n *httpTronNode) BroadcastTransaction(ctx context.Context, tx *TronTransaction) error {
	var resp struct {
		Result  bool   `json:"result"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := n.post(ctx, "/wallet/broadcasttransaction", tx, &resp); err != nil {
		return err
	}
	if !resp.Result {
		return fmt.Errorf("broadcast rejected: %s %s", resp.Code, resp.Message)
	}
	return nil
}

func (n *httpTronNode) GetTransactionInfo(ctx context.Context, txID string) (*TronTransactionInfo, error) {
	var info TronTransactionInfo
	if err := n.post(ctx, "/wallet/gettransactioninfobyid", map[string]any{"value": txID}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (n *httpTronNode) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, raw)
	}

	return json.Unmarshal(raw, out)
}
