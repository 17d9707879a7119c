// Package grpcserver exposes the meal planner gRPC API handlers.
package grpcserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/and161185/meal-planner/gen/go/mealplanner/v1"
	"github.com/and161185/meal-planner/internal/convert"
	"github.com/and161185/meal-planner/internal/errs"
	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/remote"
	"github.com/and161185/meal-planner/internal/service"
)

// Server wires services into gRPC handlers. Every non-public method expects
// AuthUnary or AuthStream to have put the caller's id into the context.
type Server struct {
	pb.UnimplementedPlannerServer
	auth service.AuthService
	docs service.DocumentService
	log  *zap.Logger
}

// New constructs a gRPC server with injected services.
func New(auth service.AuthService, docs service.DocumentService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, docs: docs, log: log}
}

func userID(ctx context.Context) (uuid.UUID, error) {
	id, ok := UserIDFromCtx(ctx)
	if !ok || id == uuid.Nil {
		return uuid.Nil, toStatus(errs.NewAuthError(errs.CodeNullUser, errs.ErrUnauthorized))
	}
	return id, nil
}

// --- Auth ---

// SignUp creates an account and returns its first access token.
func (s *Server) SignUp(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tok, u, err := s.auth.SignUp(ctx,
		convert.String(req, convert.KeyEmail),
		convert.String(req, convert.KeyPassword),
		convert.String(req, convert.KeyDisplayName))
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.ToStructSession(tok, u), nil
}

// SignIn authenticates by email and password, rate limited per peer.
func (s *Server) SignIn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tok, u, err := s.auth.SignIn(ctx,
		convert.String(req, convert.KeyEmail),
		convert.String(req, convert.KeyPassword),
		peerAddr(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.ToStructSession(tok, u), nil
}

// SignOut confirms the caller's token still denotes a session.
func (s *Server) SignOut(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.auth.SignOut(ctx, tokenFromCtx(ctx)); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Me returns the signed-in principal.
func (s *Server) Me(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.auth.Me(ctx, uid)
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.ToStructUser(u), nil
}

// RequestPasswordReset issues a reset token for the given email.
func (s *Server) RequestPasswordReset(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.auth.RequestPasswordReset(ctx, convert.String(req, convert.KeyEmail)); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// ConfirmPasswordReset sets a new password using a reset token.
func (s *Server) ConfirmPasswordReset(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	err := s.auth.ConfirmPasswordReset(ctx,
		convert.String(req, convert.KeyEmail),
		convert.String(req, convert.KeyToken),
		convert.String(req, convert.KeyPassword))
	if err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// ChangePassword sets a new password for the caller.
func (s *Server) ChangePassword(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.ChangePassword(ctx, uid, convert.String(req, convert.KeyPassword)); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// --- Documents ---

// CreateDocument stores {collection, body} under a new id.
func (s *Server) CreateDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	body, err := convert.ToJSON(req.GetFields()[convert.KeyBody].GetStructValue())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad body: %v", err)
	}
	d, err := s.docs.Create(ctx, uid, convert.String(req, convert.KeyCollection), body)
	if err != nil {
		return nil, toStatus(err)
	}
	return documentReply(d)
}

// UpdateDocument replaces the body of {collection, id}.
func (s *Server) UpdateDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	in, err := convert.FromStructDocument(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad document: %v", err)
	}
	d, err := s.docs.Update(ctx, uid, convert.String(req, convert.KeyCollection), in)
	if err != nil {
		return nil, toStatus(err)
	}
	return documentReply(d)
}

// DeleteDocument removes {collection, id} and returns it.
func (s *Server) DeleteDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.docs.Delete(ctx, uid, convert.String(req, convert.KeyCollection), convert.String(req, convert.KeyID))
	if err != nil {
		return nil, toStatus(err)
	}
	return documentReply(d)
}

func documentReply(d model.Document) (*structpb.Struct, error) {
	out, err := convert.ToStructDocument(d)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode document: %v", err)
	}
	return out, nil
}

// Watch streams full snapshots of {path} until the client goes away. Only
// the latest pending snapshot is kept for a slow reader.
func (s *Server) Watch(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	uid, err := userID(ctx)
	if err != nil {
		return err
	}
	owner, coll, err := remote.ParseUserPath(convert.String(req, convert.KeyPath))
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if oid, err := uuid.FromString(owner); err != nil || oid != uid {
		return status.Error(codes.PermissionDenied, "forbidden")
	}

	latest := make(chan []model.Document, 1)
	stop, err := s.docs.Watch(ctx, uid, coll, func(docs []model.Document) {
		// deliveries are serialized, so after draining the send cannot block
		select {
		case <-latest:
		default:
		}
		latest <- docs
	})
	if err != nil {
		return toStatus(err)
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case docs := <-latest:
			msg, err := convert.ToStructDocuments(docs)
			if err != nil {
				s.log.Error("encode snapshot", zap.String("collection", coll), zap.Error(err))
				return status.Error(codes.Internal, "encode snapshot")
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}
