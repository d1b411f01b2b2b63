package server

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/tejusbharadwaj/pvforecast/internal/models"
	"github.com/tejusbharadwaj/pvforecast/internal/weather"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pvforecast.PVForecast"

// Full method names, used by interceptors to select methods.
const (
	MethodPredict     = "/" + ServiceName + "/Predict"
	MethodQueryEnergy = "/" + ServiceName + "/QueryEnergy"
	MethodReloadModel = "/" + ServiceName + "/ReloadModel"
)

// PredictRequest asks for a forecast of one local day. Date is YYYY-MM-DD in
// the service timezone; empty means today. Empty Locations falls back to the
// configured PV sites.
type PredictRequest struct {
	Date      string             `json:"date,omitempty"`
	Locations []weather.Location `json:"locations,omitempty"`
}

// EnergyRequest aggregates stored production over [Start, End].
type EnergyRequest struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Window      string    `json:"window"`
	Aggregation string    `json:"aggregation"`
}

// DataPoint represents a generic time series data point
type DataPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

type EnergyResponse struct {
	Data []DataPoint `json:"data"`
}

type ReloadModelRequest struct{}

type ReloadModelResponse struct {
	ModelID string `json:"model_id"`
}

// PVForecastServer is the server API of the forecast service.
type PVForecastServer interface {
	Predict(context.Context, *PredictRequest) (*models.PredictionResponse, error)
	QueryEnergy(context.Context, *EnergyRequest) (*EnergyResponse, error)
	ReloadModel(context.Context, *ReloadModelRequest) (*ReloadModelResponse, error)
}

// RegisterPVForecastServer registers srv on s.
func RegisterPVForecastServer(s grpc.ServiceRegistrar, srv PVForecastServer) {
	s.RegisterService(&pvForecastServiceDesc, srv)
}

var pvForecastServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PVForecastServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
		{MethodName: "QueryEnergy", Handler: queryEnergyHandler},
		{MethodName: "ReloadModel", Handler: reloadModelHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pvforecast",
}

func predictHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PredictRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PVForecastServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPredict}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PVForecastServer).Predict(ctx, req.(*PredictRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func queryEnergyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(EnergyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PVForecastServer).QueryEnergy(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodQueryEnergy}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PVForecastServer).QueryEnergy(ctx, req.(*EnergyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func reloadModelHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ReloadModelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PVForecastServer).ReloadModel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodReloadModel}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PVForecastServer).ReloadModel(ctx, req.(*ReloadModelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PVForecastClient is a client for the forecast service using the JSON codec.
type PVForecastClient struct {
	cc grpc.ClientConnInterface
}

func NewPVForecastClient(cc grpc.ClientConnInterface) *PVForecastClient {
	return &PVForecastClient{cc: cc}
}

func (c *PVForecastClient) Predict(ctx context.Context, in *PredictRequest, opts ...grpc.CallOption) (*models.PredictionResponse, error) {
	out := new(models.PredictionResponse)
	if err := c.invoke(ctx, MethodPredict, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PVForecastClient) QueryEnergy(ctx context.Context, in *EnergyRequest, opts ...grpc.CallOption) (*EnergyResponse, error) {
	out := new(EnergyResponse)
	if err := c.invoke(ctx, MethodQueryEnergy, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PVForecastClient) ReloadModel(ctx context.Context, in *ReloadModelRequest, opts ...grpc.CallOption) (*ReloadModelResponse, error) {
	out := new(ReloadModelResponse)
	if err := c.invoke(ctx, MethodReloadModel, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PVForecastClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}
