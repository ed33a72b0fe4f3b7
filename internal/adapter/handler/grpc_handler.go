package handler

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rl1809/med-provenance/internal/core/domain"
)

const (
	VerificationServiceName = "provenance.v1.Verification"
	LookupMethod            = "/" + VerificationServiceName + "/Lookup"
)

// VerificationServer answers lookups over gRPC using protobuf well-known
// types, so no generated code is needed on either side.
type VerificationServer interface {
	Lookup(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error)
}

var VerificationServiceDesc = grpc.ServiceDesc{
	ServiceName: VerificationServiceName,
	HandlerType: (*VerificationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Lookup", Handler: lookupHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "provenance/v1/verification.proto",
}

func RegisterVerificationServer(s grpc.ServiceRegistrar, srv VerificationServer) {
	s.RegisterService(&VerificationServiceDesc, srv)
}

func lookupHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VerificationServer).Lookup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LookupMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VerificationServer).Lookup(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

// VerificationClient is the caller side of VerificationServiceDesc.
type VerificationClient struct {
	cc grpc.ClientConnInterface
}

func NewVerificationClient(cc grpc.ClientConnInterface) *VerificationClient {
	return &VerificationClient{cc: cc}
}

func (c *VerificationClient) Lookup(ctx context.Context, identifier uint64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LookupMethod, wrapperspb.UInt64(identifier), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type GRPCHandler struct {
	verifier Verifier
}

func NewGRPCHandler(verifier Verifier) *GRPCHandler {
	return &GRPCHandler{verifier: verifier}
}

func (h *GRPCHandler) Lookup(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	result, err := h.verifier.Lookup(ctx, req.GetValue())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return lookupResponse(false, "product not found", nil)
		}
		return lookupResponse(false, "internal error", nil)
	}

	rec := result.Record
	product := map[string]interface{}{
		"productId":      rec.Identifier,
		"name":           rec.Name,
		"productionDate": rec.ProductionDate,
		"expiryDate":     rec.ExpiryDate,
		"medicalInfo":    rec.MedicalInfo,
		"owner":          rec.Owner,
		"addedAt":        rec.AddedAt.Format(time.RFC3339),
		"verifyUrl":      result.VerifyURL,
	}
	return lookupResponse(true, "", product)
}

func lookupResponse(success bool, message string, product map[string]interface{}) (*structpb.Struct, error) {
	fields := map[string]interface{}{"success": success}
	if message != "" {
		fields["message"] = message
	}
	if product != nil {
		fields["product"] = product
	}
	return structpb.NewStruct(fields)
}
