// Package escrow serves the escrow.v1.EscrowService gRPC API. Messages are
// google.protobuf.Struct values; amounts travel as decimal strings so 256-bit
// wei values survive JSON-shaped transport.
package escrow

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "escrow.v1.EscrowService"

// Full method names.
const (
	CreateCampaignMethod       = "/" + ServiceName + "/CreateCampaign"
	DonateMethod               = "/" + ServiceName + "/Donate"
	CreateMilestoneMethod      = "/" + ServiceName + "/CreateMilestone"
	VoteOnMilestoneMethod      = "/" + ServiceName + "/VoteOnMilestone"
	WithdrawMilestoneMethod    = "/" + ServiceName + "/WithdrawMilestone"
	RetrieveDonationMethod     = "/" + ServiceName + "/RetrieveDonation"
	ClaimRetainedPenaltyMethod = "/" + ServiceName + "/ClaimRetainedPenalty"
	GetFundingDetailsMethod    = "/" + ServiceName + "/GetFundingDetails"
	GetDonationMethod          = "/" + ServiceName + "/GetDonation"
	ListCampaignsMethod        = "/" + ServiceName + "/ListCampaigns"
	DepositMethod              = "/" + ServiceName + "/Deposit"
	WithdrawPlatformFeesMethod = "/" + ServiceName + "/WithdrawPlatformFees"
)

// PublicMethods may be called without an authenticated caller.
var PublicMethods = map[string]bool{
	GetFundingDetailsMethod: true,
	GetDonationMethod:       true,
	ListCampaignsMethod:     true,
}

// MutatingMethods honor idempotency keys.
var MutatingMethods = map[string]bool{
	CreateCampaignMethod:       true,
	DonateMethod:               true,
	CreateMilestoneMethod:      true,
	VoteOnMilestoneMethod:      true,
	WithdrawMilestoneMethod:    true,
	RetrieveDonationMethod:     true,
	ClaimRetainedPenaltyMethod: true,
	DepositMethod:              true,
	WithdrawPlatformFeesMethod: true,
}

// EscrowServer is the server API for escrow.v1.EscrowService.
type EscrowServer interface {
	CreateCampaign(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Donate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateMilestone(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VoteOnMilestone(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WithdrawMilestone(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RetrieveDonation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClaimRetainedPenalty(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetFundingDetails(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDonation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCampaigns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Deposit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WithdrawPlatformFees(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(EscrowServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func methodHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EscrowServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EscrowServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func method(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{MethodName: name, Handler: methodHandler("/"+ServiceName+"/"+name, call)}
}

// ServiceDesc describes escrow.v1.EscrowService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EscrowServer)(nil),
	Methods: []grpc.MethodDesc{
		method("CreateCampaign", EscrowServer.CreateCampaign),
		method("Donate", EscrowServer.Donate),
		method("CreateMilestone", EscrowServer.CreateMilestone),
		method("VoteOnMilestone", EscrowServer.VoteOnMilestone),
		method("WithdrawMilestone", EscrowServer.WithdrawMilestone),
		method("RetrieveDonation", EscrowServer.RetrieveDonation),
		method("ClaimRetainedPenalty", EscrowServer.ClaimRetainedPenalty),
		method("GetFundingDetails", EscrowServer.GetFundingDetails),
		method("GetDonation", EscrowServer.GetDonation),
		method("ListCampaigns", EscrowServer.ListCampaigns),
		method("Deposit", EscrowServer.Deposit),
		method("WithdrawPlatformFees", EscrowServer.WithdrawPlatformFees),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "escrow/v1/escrow.proto",
}

// RegisterEscrowServer registers srv on s.
func RegisterEscrowServer(s grpc.ServiceRegistrar, srv EscrowServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls escrow.v1.EscrowService.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Call invokes fullMethod with in and returns the response message.
func (c *Client) Call(ctx context.Context, fullMethod string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
