package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/dataset"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/engine/local"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/engine/remote"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/entity"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/recorder"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/task"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/config"
)

var (
	// 运行阶段：collect采集，clean合并清洗，split划分，all依次执行前三者，serve对外提供进程内引擎
	stage = flag.String("stage", "all", "pipeline stage (collect, clean, split, all, serve)")
	// 仿真引擎RPC桥接地址，覆盖配置文件中的engine.addr，两者都为空时使用进程内引擎
	engineAddr = flag.String("engine", "", "engine bridge address (empty means in-process engine), e.g. http://localhost:2000")
	// 采集任务名，写入日志与采集清单
	job = flag.String("job", "job0", "the name of the collection job")
	// serve阶段监听地址
	listenAddr = flag.String("listen", ":51102", "engine service listening address (serve stage only)")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path (empty means built-in defaults)")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "roundabout")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	c := loadConfig()
	if *engineAddr != "" {
		c.Engine.Addr = *engineAddr
	}
	log.Debugf("%+v", c)

	// Ctrl-C：当前场景进入清理，已完成的场景与清单保留
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch *stage {
	case "collect":
		err = collect(ctx, c)
	case "clean":
		_, err = dataset.RunClean(ctx, c, len(task.Scenarios(c)))
	case "split":
		_, err = dataset.RunSplit(ctx, c)
	case "all":
		if err = collect(ctx, c); err == nil {
			if _, err = dataset.RunClean(ctx, c, len(task.Scenarios(c))); err == nil {
				_, err = dataset.RunSplit(ctx, c)
			}
		}
	case "serve":
		err = serve(ctx, c)
	default:
		log.Panicf("unknown stage %q", *stage)
	}
	if err != nil {
		log.Errorf("stage %s: %v", *stage, err)
		os.Exit(1)
	}
}

// loadConfig 获取配置：文件、Base64数据或内置默认值
func loadConfig() config.Config {
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else {
		log.Info("no config specified, using built-in defaults")
	}
	c, err := config.Load(file)
	if err != nil {
		log.Panicf("config file load err: %v", err)
	}
	return c
}

func newEngine(c config.Config) entity.IEngine {
	if c.Engine.Addr == "" {
		log.Info("using in-process engine")
		opts := local.DefaultOptions()
		opts.Center = c.Roundabout.Center
		opts.Seed = c.Control.Seed
		return local.New(opts)
	}
	log.Infof("connecting to engine bridge at %s", c.Engine.Addr)
	timeout := time.Duration(c.Engine.Timeout * float64(time.Second))
	return remote.NewClient(http.DefaultClient, c.Engine.Addr, timeout)
}

func newSink(ctx context.Context, c config.Config, runID string) (recorder.Sink, error) {
	sinks := recorder.MultiSink{recorder.NewCSVSink(c.Output.RawDir)}
	if m := c.Output.Mongo; m != nil {
		s, err := recorder.NewMongoSink(ctx, m.URI, m.DB, m.Col, runID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func collect(ctx context.Context, c config.Config) error {
	engine := newEngine(c)
	runID := recorder.NewRunID()
	sink, err := newSink(ctx, c, runID)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warnf("close sink: %v", err)
		}
	}()
	_, err = task.NewCollector(*job, engine, c, sink, task.WithRunID(runID)).Run(ctx)
	return err
}

// serve 以RPC服务的形式提供进程内引擎，供其他进程通过-engine连接
func serve(ctx context.Context, c config.Config) error {
	opts := local.DefaultOptions()
	opts.Center = c.Roundabout.Center
	opts.Seed = c.Control.Seed
	pattern, handler := remote.NewHandler(local.New(opts))
	mux := http.NewServeMux()
	mux.Handle(pattern, handler)
	server := &http.Server{Addr: *listenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}()
	log.Infof("engine service %s listening on %s", remote.ServiceName, *listenAddr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
