package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/technirvor/storefront/internal/core/domain"
	"github.com/technirvor/storefront/internal/core/service"
	"github.com/technirvor/storefront/internal/port"
)

const orderServiceName = "technirvor.OrderService"

// jsonCodec carries the service structs as JSON instead of protobuf.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

type PlaceOrderRPCRequest struct {
	Order          service.PlaceOrderRequest `json:"order"`
	IdempotencyKey string                    `json:"idempotency_key"`
}

type PlaceOrderRPCResponse struct {
	Success bool          `json:"success"`
	Order   *domain.Order `json:"order"`
}

type GetOrderRPCRequest struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
}

type TrackOrderRPCRequest struct {
	OrderNumber string `json:"order_number"`
	Phone       string `json:"phone"`
}

type UpdateOrderStatusRPCRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Note   string `json:"note"`
}

// OrderServiceServer is the server side of technirvor.OrderService.
type OrderServiceServer interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRPCRequest) (*PlaceOrderRPCResponse, error)
	GetOrder(ctx context.Context, req *GetOrderRPCRequest) (*service.OrderDetail, error)
	TrackOrder(ctx context.Context, req *TrackOrderRPCRequest) (*service.OrderDetail, error)
	UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRPCRequest) (*service.OrderDetail, error)
}

type GRPCHandler struct {
	orderService *service.OrderService
	logger       *zap.Logger
}

func NewGRPCHandler(orderService *service.OrderService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{orderService: orderService, logger: logger}
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *PlaceOrderRPCRequest) (*PlaceOrderRPCResponse, error) {
	order, err := h.orderService.PlaceOrder(ctx, req.Order, req.IdempotencyKey)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return &PlaceOrderRPCResponse{Success: true, Order: order}, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GetOrderRPCRequest) (*service.OrderDetail, error) {
	var (
		detail *service.OrderDetail
		err    error
	)
	switch {
	case req.ID != "":
		detail, err = h.orderService.GetOrder(ctx, req.ID)
	case req.OrderNumber != "":
		detail, err = h.orderService.GetOrderByNumber(ctx, req.OrderNumber)
	default:
		return nil, status.Error(codes.InvalidArgument, "Order id or number is required")
	}
	if err != nil {
		return nil, h.rpcError(err)
	}
	return detail, nil
}

func (h *GRPCHandler) TrackOrder(ctx context.Context, req *TrackOrderRPCRequest) (*service.OrderDetail, error) {
	if req.OrderNumber == "" || req.Phone == "" {
		return nil, status.Error(codes.InvalidArgument, "Order number and phone are required")
	}
	detail, err := h.orderService.TrackOrder(ctx, req.OrderNumber, req.Phone)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return detail, nil
}

func (h *GRPCHandler) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRPCRequest) (*service.OrderDetail, error) {
	detail, err := h.orderService.UpdateStatus(ctx, req.ID, req.Status, req.Note)
	if err != nil {
		return nil, h.rpcError(err)
	}
	return detail, nil
}

func (h *GRPCHandler) rpcError(err error) error {
	code, msg := statusFor(err, "Order not found")
	var c codes.Code
	switch code {
	case http.StatusBadRequest:
		c = codes.InvalidArgument
	case http.StatusNotFound:
		c = codes.NotFound
	case http.StatusConflict:
		if errors.Is(err, service.ErrDuplicateRequest) {
			c = codes.AlreadyExists
		} else {
			c = codes.Aborted
		}
	default:
		h.logger.Error("rpc failed", zap.Error(err))
		c = codes.Internal
	}
	return status.Error(c, msg)
}

// GRPCConfig holds the gates the order service applies per call.
type GRPCConfig struct {
	APIKeys    []string
	RateLimit  int
	RateWindow time.Duration
}

// TokenParser verifies bearer tokens for the admin RPCs.
type TokenParser interface {
	ParseToken(token string) (*service.Claims, error)
}

var (
	rateLimitedMethods = map[string]bool{"PlaceOrder": true}
	adminMethods       = map[string]bool{"GetOrder": true, "UpdateOrderStatus": true}
)

// NewGRPCServer returns a server with the order service registered behind
// the x-api-key check. PlaceOrder shares the HTTP intake rate limit and the
// admin RPCs need an admin bearer token.
func NewGRPCServer(h OrderServiceServer, cfg GRPCConfig, limiter port.RateLimiter, tokens TokenParser, logger *zap.Logger) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(
			loggingInterceptor(logger),
			apiKeyInterceptor(cfg.APIKeys),
			rateLimitInterceptor(limiter, cfg.RateLimit, cfg.RateWindow, logger),
			adminInterceptor(tokens),
		),
	)
	RegisterOrderServiceServer(srv, h)
	return srv
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&orderServiceDesc, srv)
}

func methodName(info *grpc.UnaryServerInfo) string {
	return strings.TrimPrefix(info.FullMethod, "/"+orderServiceName+"/")
}

func firstMD(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func apiKeyInterceptor(keys []string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		if !validAPIKey(keys, firstMD(md, headerAPIKey)) {
			return nil, status.Error(codes.Unauthenticated, "Invalid API key")
		}
		return handler(ctx, req)
	}
}

// rateLimitInterceptor counts order intake per client under the same key as
// the HTTP limiter. A limiter outage lets the call through.
func rateLimitInterceptor(limiter port.RateLimiter, limit int, window time.Duration, logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if limiter == nil || !rateLimitedMethods[methodName(info)] {
			return handler(ctx, req)
		}
		allowed, err := limiter.Allow(ctx, "orders:"+rpcClientID(ctx), limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			return handler(ctx, req)
		}
		if !allowed {
			return nil, status.Error(codes.ResourceExhausted, "Too many requests")
		}
		return handler(ctx, req)
	}
}

// rpcClientID is the first x-forwarded-for hop, else the peer address.
func rpcClientID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if xff := firstMD(md, "x-forwarded-for"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func adminInterceptor(tokens TokenParser) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !adminMethods[methodName(info)] {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		token, ok := strings.CutPrefix(firstMD(md, "authorization"), "Bearer ")
		if !ok || token == "" || tokens == nil {
			return nil, status.Error(codes.Unauthenticated, "Unauthorized")
		}
		claims, err := tokens.ParseToken(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "Unauthorized")
		}
		if claims.Role != domain.RoleAdmin {
			return nil, status.Error(codes.PermissionDenied, "Admin access required")
		}
		return handler(ctx, req)
	}
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("rpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("took", time.Since(start)))
		return resp, err
	}
}

func unaryHandler[Req any, Resp any](method string, call func(OrderServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OrderServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(OrderServiceServer), ctx, req.(*Req))
			})
		},
	}
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("PlaceOrder", OrderServiceServer.PlaceOrder),
		unaryHandler("GetOrder", OrderServiceServer.GetOrder),
		unaryHandler("TrackOrder", OrderServiceServer.TrackOrder),
		unaryHandler("UpdateOrderStatus", OrderServiceServer.UpdateOrderStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "technirvor/order_service",
}

// OrderClient calls technirvor.OrderService with the JSON codec.
type OrderClient struct {
	cc     grpc.ClientConnInterface
	apiKey string
	token  string
}

func NewOrderClient(cc grpc.ClientConnInterface, apiKey string) *OrderClient {
	return &OrderClient{cc: cc, apiKey: apiKey}
}

// WithToken returns a client that also sends token as a bearer credential,
// as the admin RPCs require.
func (c *OrderClient) WithToken(token string) *OrderClient {
	cp := *c
	cp.token = token
	return &cp
}

func (c *OrderClient) invoke(ctx context.Context, method string, in, out any) error {
	if c.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, headerAPIKey, c.apiKey)
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	return c.cc.Invoke(ctx, "/"+orderServiceName+"/"+method, in, out, grpc.ForceCodec(jsonCodec{}))
}

func (c *OrderClient) PlaceOrder(ctx context.Context, req *PlaceOrderRPCRequest) (*PlaceOrderRPCResponse, error) {
	out := new(PlaceOrderRPCResponse)
	if err := c.invoke(ctx, "PlaceOrder", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderClient) GetOrder(ctx context.Context, req *GetOrderRPCRequest) (*service.OrderDetail, error) {
	out := new(service.OrderDetail)
	if err := c.invoke(ctx, "GetOrder", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderClient) TrackOrder(ctx context.Context, req *TrackOrderRPCRequest) (*service.OrderDetail, error) {
	out := new(service.OrderDetail)
	if err := c.invoke(ctx, "TrackOrder", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderClient) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRPCRequest) (*service.OrderDetail, error) {
	out := new(service.OrderDetail)
	if err := c.invoke(ctx, "UpdateOrderStatus", req, out); err != nil {
		return nil, err
	}
	return out, nil
}
