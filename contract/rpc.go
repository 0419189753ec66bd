package contract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
	"github.com/marwen-abid/launchpad-wallet-go/core/net"
	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

const jsonRPCVersion = "2.0"

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type simulateParams struct {
	Transaction string `json:"transaction"`
}

type simulateHostFunctionResult struct {
	Auth []string `json:"auth"`
	XDR  string   `json:"xdr"`
}

type simulateResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Error   *rpcError `json:"error,omitempty"`
	Result  *struct {
		Error           string                       `json:"error,omitempty"`
		TransactionData string                       `json:"transactionData"`
		MinResourceFee  string                       `json:"minResourceFee"`
		Results         []simulateHostFunctionResult `json:"results"`
		LatestLedger    int64                        `json:"latestLedger"`
	} `json:"result,omitempty"`
}

// RPCClient talks JSON-RPC to a Stellar RPC server. It implements
// launchpad.Simulator.
type RPCClient struct {
	url    string
	http   *net.Client
	logger *logrus.Entry
}

// RPCOption configures an RPCClient.
type RPCOption func(*RPCClient)

// WithHTTPClient sets the transport client.
func WithHTTPClient(client *net.Client) RPCOption {
	return func(c *RPCClient) {
		c.http = client
	}
}

// WithRPCLogger sets the logger.
func WithRPCLogger(logger *logrus.Entry) RPCOption {
	return func(c *RPCClient) {
		c.logger = logger
	}
}

// NewRPCClient creates a client for the RPC server at url.
func NewRPCClient(url string, opts ...RPCOption) *RPCClient {
	c := &RPCClient{
		url:    url,
		logger: logrus.NewEntry(logrus.StandardLogger()).WithField("component", "rpc"),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = net.NewClient(net.WithLogger(c.logger))
	}

	return c
}

// Simulate runs simulateTransaction for a base64 envelope. Transport failures
// are REMOTE_UNAVAILABLE; a contract-side failure is reported in the result's
// Error field rather than as an error.
func (c *RPCClient) Simulate(ctx context.Context, envelopeXDR string) (*launchpad.SimulationResult, error) {
	req := rpcRequest{
		JSONRPC: jsonRPCVersion,
		ID:      uuid.NewString(),
		Method:  "simulateTransaction",
		Params:  simulateParams{Transaction: envelopeXDR},
	}

	var resp simulateResponse
	if err := c.http.PostJSON(ctx, c.url, req, &resp); err != nil {
		return nil, err
	}

	log := c.logger.WithField("request_id", req.ID)
	if resp.Error != nil {
		log.WithField("rpc_code", resp.Error.Code).Debug("simulation rejected by rpc")
		return nil, errors.NewContractError(
			errors.SIMULATION_FAILED,
			fmt.Sprintf("rpc error %d: %s", resp.Error.Code, resp.Error.Message),
			nil,
		).With("request_id", req.ID)
	}
	if resp.Result == nil {
		return nil, errors.NewContractError(errors.REMOTE_UNAVAILABLE, "empty simulation response", nil).
			With("request_id", req.ID)
	}

	result := &launchpad.SimulationResult{
		TransactionData: resp.Result.TransactionData,
		Error:           resp.Result.Error,
	}
	if result.Error != "" {
		log.WithField("simulation_error", result.Error).Debug("simulation failed")
		return result, nil
	}

	if resp.Result.MinResourceFee != "" {
		fee, err := strconv.ParseInt(resp.Result.MinResourceFee, 10, 64)
		if err != nil {
			return nil, errors.NewContractError(errors.SIMULATION_FAILED, "invalid minimum resource fee", err).
				With("min_resource_fee", resp.Result.MinResourceFee)
		}
		result.MinResourceFee = fee
	}
	if len(resp.Result.Results) > 0 {
		result.Result = resp.Result.Results[0].XDR
		result.Auth = resp.Result.Results[0].Auth
	}

	log.WithFields(logrus.Fields{
		"min_resource_fee": result.MinResourceFee,
		"latest_ledger":    resp.Result.LatestLedger,
	}).Debug("simulation succeeded")

	return result, nil
}

var _ launchpad.Simulator = (*RPCClient)(nil)
