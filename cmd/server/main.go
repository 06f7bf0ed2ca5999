package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"smec/conclave/internal/catalog"
	"smec/conclave/internal/clients"
	"smec/conclave/internal/config"
	conclavegrpc "smec/conclave/internal/grpc"
	internalhttp "smec/conclave/internal/http"
	"smec/conclave/internal/jobs"
	"smec/conclave/internal/registration"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := clients.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer deps.Close()

	service := registration.NewService(deps.Accounts, deps.Profiles, deps.Mailer, registration.Options{
		ResetRedirectURL: cfg.ResetRedirectURL,
	})
	server := internalhttp.NewServer(service, catalog.Default(), cfg.CORSAllowedOrigins)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := conclavegrpc.NewHealthServer()
	conclavegrpc.Register(grpcServer, healthServer)

	probes := []jobs.Probe{{Name: "postgres", Check: deps.Pool.Ping}}
	if deps.Redis != nil {
		probes = append(probes, jobs.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		}})
	}
	jobs.StartHealthProbeJob(ctx, cfg, healthServer, []string{"", conclavegrpc.ServiceName}, probes...)

	go func() {
		log.Printf("conclave http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen error: %v", err)
		}
		log.Printf("conclave grpc health listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatalf("grpc server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthServer.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	grpcServer.GracefulStop()
}
