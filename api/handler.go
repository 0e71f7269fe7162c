package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/autosave-fi/autosave/internal/authz"
	"github.com/autosave-fi/autosave/internal/types"
)

func (s *Server) CreatePlan(c echo.Context) error {
	var req CreatePlanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "fail to parse request", Detail: err.Error()})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "fail to validate request", Detail: err.Error()})
	}

	plan, err := s.ledger.CreatePlan(c.Request().Context(), &authz.SubscriptionAuthorization{
		Owner:             req.Owner,
		Token:             req.Token,
		AmountPerInterval: req.AmountPerInterval,
		IntervalSeconds:   req.IntervalSeconds,
		Deadline:          req.Deadline,
		Nonce:             req.Nonce,
		Signature:         req.Signature,
	})
	if err != nil {
		return jsonError(c, err)
	}

	s.incCounter("api.plan.create", []string{})
	return c.JSON(http.StatusCreated, plan)
}

func (s *Server) ApplyPermit(c echo.Context) error {
	var req PermitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "fail to parse request", Detail: err.Error()})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "fail to validate request", Detail: err.Error()})
	}

	err := s.ledger.ApplyPermit(c.Request().Context(), &authz.PermitAuthorization{
		Owner:     req.Owner,
		Token:     req.Token,
		Amount:    req.Amount,
		Deadline:  req.Deadline,
		Signature: req.Signature,
	})
	if err != nil {
		return jsonError(c, err)
	}

	s.incCounter("api.permit.apply", []string{})
	return c.NoContent(http.StatusOK)
}

func (s *Server) GetPlan(c echo.Context) error {
	plan, err := s.ledger.GetPlan(c.Request().Context(), c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, plan)
}

func (s *Server) GetPlanHistory(c echo.Context) error {
	if s.redis == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Message: "execution history not available"})
	}

	take, skip := pagination(c)
	history, err := s.redis.ExecutionHistory(c.Request().Context(), c.Param("id"), take, skip)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

func (s *Server) ListPlans(c echo.Context) error {
	take, skip := pagination(c)
	plans, err := s.ledger.ListPlansByOwner(c.Request().Context(), c.Param("owner"), take, skip, c.QueryParam("sort"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, plans)
}

func (s *Server) GetNonce(c echo.Context) error {
	owner := c.Param("owner")
	nonce, err := s.ledger.GetNonce(c.Request().Context(), owner)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, NonceResponse{Owner: owner, Nonce: nonce})
}

func (s *Server) GetBalance(c echo.Context) error {
	account := c.Param("account")
	token := c.Param("token")
	balance, err := s.ledger.GetBalance(c.Request().Context(), account, token)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, BalanceResponse{Account: account, Token: token, Balance: balance.String()})
}

func (s *Server) GetEvents(c echo.Context) error {
	from, err := strconv.ParseUint(c.QueryParam("from"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid from height"})
	}
	to, err := strconv.ParseUint(c.QueryParam("to"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid to height"})
	}

	events, err := s.ledger.EventsInRange(c.Request().Context(), from, to, types.EventKind(c.QueryParam("kind")))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

func (s *Server) GetHeight(c echo.Context) error {
	height, err := s.ledger.CurrentHeight(c.Request().Context())
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, HeightResponse{Height: height})
}

func (s *Server) GetTokenPolicy(c echo.Context) error {
	policy, err := s.ledger.GetTokenPolicy(c.Request().Context(), c.Param("token"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, policy)
}

func (s *Server) GetFeePolicy(c echo.Context) error {
	policy, err := s.ledger.GetFeePolicy(c.Request().Context())
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, policy)
}

func (s *Server) CancelPlan(c echo.Context) error {
	claims := callerClaims(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "missing token"})
	}

	if err := s.ledger.Cancel(c.Request().Context(), claims.Address, c.Param("id")); err != nil {
		return jsonError(c, err)
	}
	s.incCounter("api.plan.cancel", []string{})
	return c.NoContent(http.StatusOK)
}

func (s *Server) CancelFor(c echo.Context) error {
	claims := callerClaims(c)
	if err := s.ledger.CancelFor(c.Request().Context(), claims.Address, c.Param("owner")); err != nil {
		return jsonError(c, err)
	}
	s.incCounter("api.plan.cancel_for", []string{})
	return c.NoContent(http.StatusOK)
}

func (s *Server) ExecutePlan(c echo.Context) error {
	claims := callerClaims(c)
	result, err := s.ledger.Execute(c.Request().Context(), claims.Address, c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}
	s.incCounter("api.plan.execute", []string{})
	return c.JSON(http.StatusOK, result)
}

func (s *Server) GetRelayerCredit(c echo.Context) error {
	claims := callerClaims(c)
	credit, err := s.ledger.GetRelayerCredit(c.Request().Context(), claims.Address)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, credit)
}

func (s *Server) WithdrawCredit(c echo.Context) error {
	claims := callerClaims(c)
	amount, err := s.ledger.WithdrawRelayerCredit(c.Request().Context(), claims.Address)
	if err != nil {
		return jsonError(c, err)
	}
	s.incCounter("api.relayer.withdraw", []string{})
	return c.JSON(http.StatusOK, WithdrawResponse{Relayer: claims.Address, Amount: amount.String()})
}

func (s *Server) Deposit(c echo.Context) error {
	var req DepositRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "fail to parse request", Detail: err.Error()})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "fail to validate request", Detail: err.Error()})
	}

	claims := callerClaims(c)
	if err := s.ledger.Deposit(c.Request().Context(), claims.Address, req.Account, req.Token, req.Amount); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) SetTokenPolicy(c echo.Context) error {
	var req TokenPolicyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "fail to parse request", Detail: err.Error()})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "fail to validate request", Detail: err.Error()})
	}

	claims := callerClaims(c)
	err := s.ledger.SetTokenPolicy(c.Request().Context(), claims.Address, types.TokenPolicy{
		Token:        req.Token,
		YieldRateBps: req.YieldRateBps,
		Allowed:      req.Allowed,
	})
	if err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) SetFeePolicy(c echo.Context) error {
	var req FeePolicyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "fail to parse request", Detail: err.Error()})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "fail to validate request", Detail: err.Error()})
	}

	claims := callerClaims(c)
	err := s.ledger.SetFeePolicy(c.Request().Context(), claims.Address, types.FeePolicy{
		FeeToken:      req.FeeToken,
		BaseFee:       req.BaseFee,
		PercentFeeBps: req.PercentFeeBps,
		Active:        req.Active,
	})
	if err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) SetRelayerRole(c echo.Context) error {
	var req RelayerRoleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "fail to parse request", Detail: err.Error()})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "fail to validate request", Detail: err.Error()})
	}

	claims := callerClaims(c)
	if err := s.ledger.SetRelayerRole(c.Request().Context(), claims.Address, req.Account, req.Enabled); err != nil {
		return jsonError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

func pagination(c echo.Context) (take int, skip int) {
	take = 20
	skip = 0
	if v, err := strconv.Atoi(c.QueryParam("take")); err == nil && v > 0 && v <= 100 {
		take = v
	}
	if v, err := strconv.Atoi(c.QueryParam("skip")); err == nil && v >= 0 {
		skip = v
	}
	return take, skip
}
