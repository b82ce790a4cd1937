package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/aabaaiaaa/TickTickTickBoom-sub000/go/internal/room"
)

const (
	AdminServiceName = "ttb.admin.v1.AdminService"

	AdminListRoomsProcedure = "/" + AdminServiceName + "/ListRooms"
	AdminGetRoomProcedure   = "/" + AdminServiceName + "/GetRoom"
)

// AdminService is a read-only RPC view of the room directory. Messages are well-known
// protobuf types so no generated code is needed.
type AdminService struct {
	rooms Rooms
}

func NewAdminService(rooms Rooms) *AdminService {
	return &AdminService{rooms: rooms}
}

// ListRooms returns {"rooms": [...]} with one summary per live room.
func (s *AdminService) ListRooms(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	out, err := toStruct(map[string]any{"rooms": s.rooms.Rooms()})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// GetRoom takes {"code": "ABCD"} and returns the public room state.
func (s *AdminService) GetRoom(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	code := req.Msg.GetFields()["code"].GetStringValue()
	if code == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("code is required"))
	}

	v, err := s.rooms.Room(code)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out, err := toStruct(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// Handler mounts both procedures under the service path.
func (s *AdminService) Handler() (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(AdminListRoomsProcedure, connect.NewUnaryHandler(AdminListRoomsProcedure, s.ListRooms))
	mux.Handle(AdminGetRoomProcedure, connect.NewUnaryHandler(AdminGetRoomProcedure, s.GetRoom))
	return "/" + AdminServiceName + "/", mux
}

// toStruct round-trips v through JSON into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode admin response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to convert admin response: %w", err)
	}
	return out, nil
}
