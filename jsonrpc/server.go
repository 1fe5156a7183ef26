package jsonrpc

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/holiman/uint256"

	"cashledger/derivation"
	"cashledger/errors"
	"cashledger/exception"
	"cashledger/interfaces"
	"cashledger/logx"
	"cashledger/types"
)

func toJRPC2Error(err error) error {
	var lerr *errors.LedgerError
	if stderrors.As(err, &lerr) {
		return jrpc2.Errorf(jrpc2.Code(-32000), "%s", lerr.Message).WithData(lerr)
	}
	return jrpc2.Errorf(jrpc2.Code(-32603), "%v", err)
}

// --- Params/Results ---

type initializeAccountParams struct {
	Caller string `json:"caller"`
}

type fundsParams struct {
	Caller string `json:"caller"`
	Owner  string `json:"owner"`
	Amount string `json:"amount"` // decimal string
}

type transferParams struct {
	Caller    string `json:"caller"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type addFriendParams struct {
	Caller string `json:"caller"`
	Owner  string `json:"owner"`
	Friend string `json:"friend"`
}

type createRequestParams struct {
	Caller       string `json:"caller"`
	Initiator    string `json:"initiator"`
	Counterparty string `json:"counterparty"`
	Amount       string `json:"amount"`
}

type settleRequestParams struct {
	Caller    string `json:"caller"`
	Initiator string `json:"initiator"`
	Payer     string `json:"payer"`
}

type getAccountParams struct {
	Owner string `json:"owner"`
}

type getRequestParams struct {
	Initiator    string `json:"initiator"`
	Counterparty string `json:"counterparty"`
}

type getByAddressParams struct {
	Address string `json:"address"`
}

type deriveAddressParams struct {
	Tag   string   `json:"tag"`
	Owner string   `json:"owner"`
	Extra []string `json:"extra,omitempty"`
}

type okResponse struct {
	Ok bool `json:"ok"`
}

type accountResponse struct {
	Address string   `json:"address"`
	Owner   string   `json:"owner"`
	Balance string   `json:"balance"`
	Friends []string `json:"friends"`
	Bump    uint8    `json:"bump"`
}

type requestResponse struct {
	Address      string `json:"address"`
	Initiator    string `json:"initiator"`
	Counterparty string `json:"counterparty"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
	Bump         uint8  `json:"bump"`
}

type deriveAddressResponse struct {
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

func parseAmount(s string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeInvalidAmount, "amount %q is not a decimal value", s)
	}
	return amount, nil
}

func accountToResponse(addr string, acc *types.CashAccount) *accountResponse {
	return &accountResponse{
		Address: addr,
		Owner:   acc.Owner,
		Balance: acc.Balance.Dec(),
		Friends: acc.Friends,
		Bump:    acc.Bump,
	}
}

func requestToResponse(addr string, req *types.PendingRequest) *requestResponse {
	return &requestResponse{
		Address:      addr,
		Initiator:    req.Initiator,
		Counterparty: req.Counterparty,
		Amount:       req.Amount.Dec(),
		Status:       string(req.Status),
		Bump:         req.Bump,
	}
}

// --- Server ---

type Server struct {
	addr       string
	ledger     interfaces.CashLedger
	corsConfig CORSConfig
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

func NewServer(addr string, cashLedger interfaces.CashLedger) *Server {
	return &Server{
		addr:   addr,
		ledger: cashLedger,
	}
}

func (s *Server) Start() {
	methods := s.buildMethodMap()
	jh := jhttp.NewBridge(methods, &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		jh.ServeHTTP(w, r)
	})

	mux := http.NewServeMux()
	mux.Handle("/", h)
	exception.SafeGo("jsonrpc", func() {
		if err := http.ListenAndServe(s.addr, mux); err != nil {
			logx.Error("JSONRPC", "RPC server stopped:", err.Error())
		}
	})
	logx.Info("JSONRPC", "Listening on ", s.addr)
}

// SetCORSConfig allows configuring CORS settings
func (s *Server) SetCORSConfig(config CORSConfig) {
	s.corsConfig = config
}

func (s *Server) setCORSHeaders(w http.ResponseWriter) {
	if len(s.corsConfig.AllowedOrigins) > 0 {
		w.Header().Set("Access-Control-Allow-Origin", strings.Join(s.corsConfig.AllowedOrigins, ", "))
	}
	if len(s.corsConfig.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(s.corsConfig.AllowedMethods, ", "))
	}
	if len(s.corsConfig.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(s.corsConfig.AllowedHeaders, ", "))
	}
	if s.corsConfig.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", strconv.Itoa(s.corsConfig.MaxAge))
	}
}

// Build jrpc2 method map
func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		"cash.initializeaccount": handler.New(func(ctx context.Context, p initializeAccountParams) (*accountResponse, error) {
			acc, err := s.ledger.InitializeAccount(p.Caller)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			addr, err := derivation.DeriveWithBump(derivation.TagCashAccount, acc.Owner, acc.Bump)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return accountToResponse(addr, acc), nil
		}),
		"cash.depositfunds": handler.New(func(ctx context.Context, p fundsParams) (*okResponse, error) {
			amount, err := parseAmount(p.Amount)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			if err := s.ledger.DepositFunds(p.Caller, p.Owner, amount); err != nil {
				return nil, toJRPC2Error(err)
			}
			return &okResponse{Ok: true}, nil
		}),
		"cash.withdrawfunds": handler.New(func(ctx context.Context, p fundsParams) (*okResponse, error) {
			amount, err := parseAmount(p.Amount)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			if err := s.ledger.WithdrawFunds(p.Caller, p.Owner, amount); err != nil {
				return nil, toJRPC2Error(err)
			}
			return &okResponse{Ok: true}, nil
		}),
		"cash.transferfunds": handler.New(func(ctx context.Context, p transferParams) (*okResponse, error) {
			amount, err := parseAmount(p.Amount)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			if err := s.ledger.TransferFunds(p.Caller, p.Sender, p.Recipient, amount); err != nil {
				return nil, toJRPC2Error(err)
			}
			return &okResponse{Ok: true}, nil
		}),
		"cash.addfriend": handler.New(func(ctx context.Context, p addFriendParams) (*okResponse, error) {
			if err := s.ledger.AddFriend(p.Caller, p.Owner, p.Friend); err != nil {
				return nil, toJRPC2Error(err)
			}
			return &okResponse{Ok: true}, nil
		}),
		"cash.creatependingrequest": handler.New(func(ctx context.Context, p createRequestParams) (*requestResponse, error) {
			amount, err := parseAmount(p.Amount)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			req, err := s.ledger.CreatePendingRequest(p.Caller, p.Initiator, p.Counterparty, amount)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			addr, err := derivation.DeriveWithBump(derivation.TagPendingRequest, req.Initiator, req.Bump, req.Counterparty)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return requestToResponse(addr, req), nil
		}),
		"cash.acceptrequest": handler.New(func(ctx context.Context, p settleRequestParams) (*okResponse, error) {
			if err := s.ledger.AcceptRequest(p.Caller, p.Initiator, p.Payer); err != nil {
				return nil, toJRPC2Error(err)
			}
			return &okResponse{Ok: true}, nil
		}),
		"cash.rejectrequest": handler.New(func(ctx context.Context, p settleRequestParams) (*okResponse, error) {
			if err := s.ledger.RejectRequest(p.Caller, p.Initiator, p.Payer); err != nil {
				return nil, toJRPC2Error(err)
			}
			return &okResponse{Ok: true}, nil
		}),
		"cash.getaccount": handler.New(func(ctx context.Context, p getAccountParams) (*accountResponse, error) {
			acc, err := s.ledger.GetCashAccount(p.Owner)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			addr, err := derivation.DeriveWithBump(derivation.TagCashAccount, acc.Owner, acc.Bump)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return accountToResponse(addr, acc), nil
		}),
		"cash.getrequest": handler.New(func(ctx context.Context, p getRequestParams) (*requestResponse, error) {
			req, err := s.ledger.GetPendingRequest(p.Initiator, p.Counterparty)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			addr, err := derivation.DeriveWithBump(derivation.TagPendingRequest, req.Initiator, req.Bump, req.Counterparty)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return requestToResponse(addr, req), nil
		}),
		"cash.getaccountbyaddress": handler.New(func(ctx context.Context, p getByAddressParams) (*accountResponse, error) {
			acc, err := s.ledger.GetAccountByAddress(p.Address)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return accountToResponse(p.Address, acc), nil
		}),
		"cash.getrequestbyaddress": handler.New(func(ctx context.Context, p getByAddressParams) (*requestResponse, error) {
			req, err := s.ledger.GetRequestByAddress(p.Address)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return requestToResponse(p.Address, req), nil
		}),
		"cash.deriveaddress": handler.New(func(ctx context.Context, p deriveAddressParams) (*deriveAddressResponse, error) {
			addr, bump, err := derivation.Derive(p.Tag, p.Owner, p.Extra...)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return &deriveAddressResponse{Address: addr, Bump: bump}, nil
		}),
	}
}
