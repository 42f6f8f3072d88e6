// Package main 提供 meshrouter 命令行入口
//
// 没有真实传输时可以用 -demo-peers 在进程内模拟一条邻居链，
// 观察资料与路由信息的传播。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	meshrouter "github.com/dep2p/go-meshrouter"
	"github.com/dep2p/go-meshrouter/config"
	"github.com/dep2p/go-meshrouter/internal/core/identity"
	"github.com/dep2p/go-meshrouter/internal/core/metrics"
	"github.com/dep2p/go-meshrouter/internal/core/transport/memory"
	"github.com/dep2p/go-meshrouter/internal/util/logger"
	"github.com/dep2p/go-meshrouter/pkg/types"
)

var log = logger.Logger("meshrouter/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
var (
	// ─────────────────────────────────────────────────────────────────────
	// 运行时参数
	// ─────────────────────────────────────────────────────────────────────
	configFile   = flag.String("config", "", "配置文件路径")
	preset       = flag.String("preset", "desktop", "预设配置 (desktop/mobile/test)")
	identityFile = flag.String("identity", "", "身份密钥文件路径")
	dataDir      = flag.String("data-dir", "", "数据目录（设置后启用持久化）")
	name         = flag.String("name", "", "本地用户名")
	metricsAddr  = flag.String("metrics-addr", "", "Prometheus /metrics 监听地址")

	// ─────────────────────────────────────────────────────────────────────
	// 演示
	// ─────────────────────────────────────────────────────────────────────
	demoPeers     = flag.Int("demo-peers", 0, "在进程内模拟的邻居链长度")
	statsInterval = flag.Duration("stats-interval", 10*time.Second, "网络统计输出间隔")

	// ─────────────────────────────────────────────────────────────────────
	// 信息显示
	// ─────────────────────────────────────────────────────────────────────
	showVersion = flag.Bool("version", false, "显示版本信息")
)

// demoTransports 模拟链路依次使用的传输
var demoTransports = []types.TransportModule{
	types.TransportLan,
	types.TransportBle,
	types.TransportInternet,
	types.TransportLocal,
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(meshrouter.VersionInfo())
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	id, err := loadIdentity(cfg.Identity.KeyFile)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	bw := metrics.NewBandwidthCounter(nil)
	hub := memory.NewHub(bw)
	defer func() { _ = hub.Close() }()

	node, err := meshrouter.New(
		meshrouter.WithConfig(cfg),
		meshrouter.WithPrivateKey(id.PrivateKey()),
		meshrouter.WithSender(hub.Endpoint(id.ID())),
		meshrouter.WithRegistry(reg),
	)
	if err != nil {
		return fmt.Errorf("创建节点失败: %w", err)
	}
	hub.Attach(node.ID(), node.NotifyUserUpdateReceived)

	log.Info("启动 meshrouter 节点", "version", meshrouter.Version, "commit", meshrouter.GitCommit)
	if err := node.Start(ctx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = node.Close() }()

	fmt.Printf("📦 %s\n", meshrouter.VersionInfo())
	fmt.Printf("PeerID: %s\nQ8ID:   %s\n", node.ID(), node.Q8ID())

	g, gctx := errgroup.WithContext(ctx)

	if *demoPeers > 0 {
		peers, err := startDemoPeers(gctx, hub, node, *demoPeers)
		if err != nil {
			return err
		}
		defer func() {
			for _, p := range peers {
				_ = p.Close()
			}
		}()
	}

	if cfg.Metrics.ListenAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.ListenAddr, reg)
		})
	}

	g.Go(func() error {
		reportStats(gctx, node, bw, *statsInterval)
		return nil
	})

	fmt.Println("节点已启动，按 Ctrl+C 退出")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("\n正在关闭节点...")
	return nil
}

// loadIdentity 加载或生成身份
func loadIdentity(keyFile string) (*identity.Identity, error) {
	if keyFile == "" {
		return identity.Generate()
	}
	id, created, err := identity.LoadOrCreate(keyFile)
	if err != nil {
		return nil, fmt.Errorf("加载身份失败: %w", err)
	}
	if created {
		log.Info("已生成新身份", "file", keyFile)
	}
	return id, nil
}

// startDemoPeers 创建 n 个模拟节点，与本节点组成一条链
func startDemoPeers(ctx context.Context, hub *memory.Hub, local *meshrouter.Node, n int) ([]*meshrouter.Node, error) {
	peers := make([]*meshrouter.Node, 0, n)
	prev := local
	for i := 0; i < n; i++ {
		id, err := identity.Generate()
		if err != nil {
			return peers, err
		}
		cfg := config.NewConfig()
		cfg.Profile.Name = fmt.Sprintf("demo-%d", i+1)
		cfg.Metrics.Enabled = false

		peer, err := meshrouter.New(
			meshrouter.WithConfig(cfg),
			meshrouter.WithPrivateKey(id.PrivateKey()),
			meshrouter.WithSender(hub.Endpoint(id.ID())),
		)
		if err != nil {
			return peers, err
		}
		hub.Attach(peer.ID(), peer.NotifyUserUpdateReceived)
		if err := peer.Start(ctx); err != nil {
			return peers, err
		}
		peers = append(peers, peer)

		tr := demoTransports[i%len(demoTransports)]
		rtt := time.Duration(i+1) * 3 * time.Millisecond
		hub.Connect(prev.ID(), peer.ID(), tr, rtt)
		if _, err := prev.NotifyNeighbourSeen(peer.ID(), tr, rtt.Microseconds(), time.Time{}); err != nil {
			return peers, err
		}
		if _, err := peer.NotifyNeighbourSeen(prev.ID(), tr, rtt.Microseconds(), time.Time{}); err != nil {
			return peers, err
		}
		log.Info("模拟节点已接入", "name", cfg.Profile.Name, "transport", tr.String())
		prev = peer
	}
	return peers, nil
}

// serveMetrics 提供 /metrics，ctx 取消时优雅关闭
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("指标服务已启动", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("指标服务失败: %w", err)
	}
	return nil
}

// reportStats 周期性输出网络统计
func reportStats(ctx context.Context, node *meshrouter.Node, bw *metrics.BandwidthCounter, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := node.NetworkStats()
			if err != nil {
				continue
			}
			online, _ := node.OnlineUsers()
			own := node.BandwidthStats()
			hubTotal := bw.Totals()
			log.Info("网络统计",
				"neighbours", stats.Total,
				"online", stats.OnlineCount,
				"avg_rtt_ms", stats.AverageRTTMs,
				"types", stats.ConnectionTypes,
				"users", len(online),
				"bytes_out", own.TotalOut,
				"bytes_in", own.TotalIn,
				"bytes_out_by_transport", bytesOut(node.BandwidthByTransport()),
				"hub_bytes", hubTotal.TotalOut)
		}
	}
}

// bytesOut 提取各传输的出站字节数
func bytesOut(byTransport map[string]metrics.Stats) map[string]int64 {
	out := make(map[string]int64, len(byTransport))
	for tr, st := range byTransport {
		out[tr] = st.TotalOut
	}
	return out
}
