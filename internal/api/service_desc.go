package api

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "scanhead.v1.ScanService"

// Fully qualified method names.
const (
	GetStateMethod         = "/" + serviceName + "/GetState"
	WatchStateMethod       = "/" + serviceName + "/WatchState"
	StartTrajectoryMethod  = "/" + serviceName + "/StartTrajectory"
	AbortTrajectoryMethod  = "/" + serviceName + "/AbortTrajectory"
	PauseTrajectoryMethod  = "/" + serviceName + "/PauseTrajectory"
	ResumeTrajectoryMethod = "/" + serviceName + "/ResumeTrajectory"
	ResetMethod            = "/" + serviceName + "/Reset"
	SetAxesMethod          = "/" + serviceName + "/SetAxes"
	SetScanningMethod      = "/" + serviceName + "/SetScanning"
	AdviseMethod           = "/" + serviceName + "/Advise"
)

// ScanServiceServer is the server API of the control surface.
type ScanServiceServer interface {
	GetState(context.Context, *GetStateRequest) (*State, error)
	WatchState(*WatchStateRequest, ScanService_WatchStateServer) error
	StartTrajectory(context.Context, *Empty) (*StartTrajectoryResponse, error)
	AbortTrajectory(context.Context, *Empty) (*Empty, error)
	PauseTrajectory(context.Context, *Empty) (*Empty, error)
	ResumeTrajectory(context.Context, *Empty) (*Empty, error)
	Reset(context.Context, *Empty) (*Empty, error)
	SetAxes(context.Context, *SetAxesRequest) (*SetAxesResponse, error)
	SetScanning(context.Context, *SetScanningRequest) (*Empty, error)
	Advise(context.Context, *AdviseRequest) (*AdviseResponse, error)
}

// ScanService_WatchStateServer is the server side of WatchState.
type ScanService_WatchStateServer interface {
	Send(*State) error
	grpc.ServerStream
}

type watchStateServer struct {
	grpc.ServerStream
}

func (x *watchStateServer) Send(m *State) error {
	return x.ServerStream.SendMsg(m)
}

// unary adapts a typed handler to grpc.MethodDesc, running interceptors the
// same way generated code does.
func unary[Req, Resp any](fullMethod string, call func(ScanServiceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ScanServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ScanServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchStateHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchStateRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ScanServiceServer).WatchState(in, &watchStateServer{stream})
}

// ScanService_ServiceDesc describes the control service for grpc.Server.
var ScanService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ScanServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetState", Handler: unary(GetStateMethod, ScanServiceServer.GetState)},
		{MethodName: "StartTrajectory", Handler: unary(StartTrajectoryMethod, ScanServiceServer.StartTrajectory)},
		{MethodName: "AbortTrajectory", Handler: unary(AbortTrajectoryMethod, ScanServiceServer.AbortTrajectory)},
		{MethodName: "PauseTrajectory", Handler: unary(PauseTrajectoryMethod, ScanServiceServer.PauseTrajectory)},
		{MethodName: "ResumeTrajectory", Handler: unary(ResumeTrajectoryMethod, ScanServiceServer.ResumeTrajectory)},
		{MethodName: "Reset", Handler: unary(ResetMethod, ScanServiceServer.Reset)},
		{MethodName: "SetAxes", Handler: unary(SetAxesMethod, ScanServiceServer.SetAxes)},
		{MethodName: "SetScanning", Handler: unary(SetScanningMethod, ScanServiceServer.SetScanning)},
		{MethodName: "Advise", Handler: unary(AdviseMethod, ScanServiceServer.Advise)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchState", Handler: watchStateHandler, ServerStreams: true},
	},
	Metadata: "scanhead/v1/scan_service",
}

// RegisterScanServiceServer registers srv on s.
func RegisterScanServiceServer(s grpc.ServiceRegistrar, srv ScanServiceServer) {
	s.RegisterService(&ScanService_ServiceDesc, srv)
}

// ScanServiceClient calls the control service using the JSON codec.
type ScanServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewScanServiceClient wraps a connection.
func NewScanServiceClient(cc grpc.ClientConnInterface) *ScanServiceClient {
	return &ScanServiceClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Resp any](ctx context.Context, c *ScanServiceClient, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := c.cc.Invoke(ctx, method, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ScanServiceClient) GetState(ctx context.Context, in *GetStateRequest, opts ...grpc.CallOption) (*State, error) {
	return invoke[State](ctx, c, GetStateMethod, in, opts)
}

func (c *ScanServiceClient) StartTrajectory(ctx context.Context, opts ...grpc.CallOption) (*StartTrajectoryResponse, error) {
	return invoke[StartTrajectoryResponse](ctx, c, StartTrajectoryMethod, &Empty{}, opts)
}

func (c *ScanServiceClient) AbortTrajectory(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, AbortTrajectoryMethod, &Empty{}, opts)
	return err
}

func (c *ScanServiceClient) PauseTrajectory(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, PauseTrajectoryMethod, &Empty{}, opts)
	return err
}

func (c *ScanServiceClient) ResumeTrajectory(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, ResumeTrajectoryMethod, &Empty{}, opts)
	return err
}

func (c *ScanServiceClient) Reset(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, ResetMethod, &Empty{}, opts)
	return err
}

func (c *ScanServiceClient) SetAxes(ctx context.Context, in *SetAxesRequest, opts ...grpc.CallOption) (*SetAxesResponse, error) {
	return invoke[SetAxesResponse](ctx, c, SetAxesMethod, in, opts)
}

func (c *ScanServiceClient) SetScanning(ctx context.Context, on bool, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, SetScanningMethod, &SetScanningRequest{Scanning: on}, opts)
	return err
}

func (c *ScanServiceClient) Advise(ctx context.Context, in *AdviseRequest, opts ...grpc.CallOption) (*AdviseResponse, error) {
	return invoke[AdviseResponse](ctx, c, AdviseMethod, in, opts)
}

// WatchStateClient receives state snapshots.
type WatchStateClient interface {
	Recv() (*State, error)
	grpc.ClientStream
}

type watchStateClient struct {
	grpc.ClientStream
}

func (x *watchStateClient) Recv() (*State, error) {
	m := new(State)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// WatchState opens a snapshot stream. The first message is the current
// state; later messages follow every published change.
func (c *ScanServiceClient) WatchState(ctx context.Context, in *WatchStateRequest, opts ...grpc.CallOption) (WatchStateClient, error) {
	stream, err := c.cc.NewStream(ctx, &ScanService_ServiceDesc.Streams[0], WatchStateMethod, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &watchStateClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
