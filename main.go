package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	alarmapp "unified-nms/internal/alarms/application"
	alarms "unified-nms/internal/alarms/domain"
	alarmmemory "unified-nms/internal/alarms/infrastructure/memory"
	alarmpostgres "unified-nms/internal/alarms/infrastructure/postgres"
	alarmhttp "unified-nms/internal/alarms/interfaces/http"
	alarmnotify "unified-nms/internal/alarms/notify"
	apihttp "unified-nms/internal/api/http"
	"unified-nms/internal/audit"
	"unified-nms/internal/auth"
	"unified-nms/internal/collectors"
	"unified-nms/internal/config"
	"unified-nms/internal/ingest"
	"unified-nms/internal/observability/metrics"
	telemetry "unified-nms/internal/telemetry/domain"
	metricmemory "unified-nms/internal/telemetry/infrastructure/memory"
	metricpostgres "unified-nms/internal/telemetry/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	var (
		db          *sql.DB
		metricRepo  telemetry.MetricRepository
		alarmRepo   alarms.Repository
		auditLogger audit.Logger
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		metricRepo = metricpostgres.NewMetricRepository(db)
		alarmRepo = alarmpostgres.NewAlarmRepository(db)
		auditLogger = audit.NewRepository(db)
	} else {
		logger.Printf("DATABASE_URL not set, using in-memory stores")
		metricRepo = metricmemory.NewMetricRepository()
		alarmRepo = alarmmemory.NewAlarmRepository()
	}

	metrics.Init(db, logger)

	broker := alarmhttp.NewSSEBroker()
	notifiers := []alarmapp.AlarmNotifier{broker}
	if cfg.Alarms.WebhookURL != "" {
		webhook, err := alarmnotify.NewWebhookNotifier(cfg.Alarms.WebhookURL, alarmnotify.WithLogger(logger))
		if err != nil {
			logger.Fatalf("alarm webhook error: %v", err)
		}
		notifiers = append(notifiers, webhook)
	}

	engine, err := alarmapp.NewEngine(alarmRepo, cfg,
		alarmapp.WithNotifier(alarmnotify.NewMultiNotifier(notifiers...)),
		alarmapp.WithAutoCloseTimeout(cfg.AutoCloseTimeout()),
		alarmapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("alarm engine error: %v", err)
	}

	normalizer := telemetry.NewNormalizer(cfg.ParameterNames, cfg.ParameterUnits)
	pipeline, err := ingest.NewPipeline(normalizer, cfg, metricRepo, engine,
		ingest.WithQueueSize(cfg.Collectors.QueueSize),
		ingest.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("ingest pipeline error: %v", err)
	}

	ctx := context.Background()
	go pipeline.Start(ctx)

	scheduler := alarmapp.NewScheduler(engine, pipeline, cfg.MaintenanceInterval(), logger)
	go scheduler.Start(ctx)

	for _, collector := range buildCollectors(cfg, pipeline, logger) {
		logger.Printf("starting collector %s", collector.Name())
		go collector.Run(ctx)
	}

	alarmHandler, err := alarmhttp.NewHandler(engine)
	if err != nil {
		logger.Fatalf("alarm handler error: %v", err)
	}
	metricsHandler, err := apihttp.NewMetricsHandler(metricRepo)
	if err != nil {
		logger.Fatalf("metrics handler error: %v", err)
	}
	devicesHandler, err := apihttp.NewDevicesHandler(metricRepo, alarmRepo)
	if err != nil {
		logger.Fatalf("devices handler error: %v", err)
	}
	exportHandler, err := apihttp.NewExportHandler(engine)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/alarms", alarmHandler)
	mux.Handle("/api/v1/alarms/", alarmHandler)
	mux.Handle("/api/v1/alarms/stream", alarmhttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/alarms/export.xlsx", exportHandler)
	mux.Handle("/api/v1/alarms/export.pdf", exportHandler)
	mux.Handle("/api/v1/metrics", metricsHandler)
	mux.Handle("/api/v1/devices", devicesHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	if auditLogger != nil {
		handler = audit.NewMiddleware(auditLogger, logger).Wrap(handler)
	}
	if cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
		handler = auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap(handler)
	} else {
		logger.Printf("NMS_JWT_SECRET not set, api is unauthenticated")
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(handler, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func buildCollectors(cfg *config.Config, sink collectors.Sink, logger *log.Logger) []collectors.Collector {
	var result []collectors.Collector
	var simulated []collectors.DeviceInfo

	for _, device := range cfg.Devices {
		info := collectors.DeviceInfo{
			DeviceID:   device.DeviceID,
			DeviceType: device.DeviceType,
			Protocol:   device.Protocol,
			Location:   device.Location,
		}
		if cfg.Simulate {
			simulated = append(simulated, info)
			continue
		}
		switch device.Protocol {
		case "SNMP":
			collector, err := collectors.NewSNMPCollector(collectors.SNMPConfig{
				Device:       info,
				Target:       device.IP,
				Port:         uint16(device.Port),
				Community:    device.Community,
				OIDs:         device.OIDs,
				PollInterval: cfg.SNMPPollInterval(),
			}, sink, logger)
			if err != nil {
				logger.Printf("skipping snmp device %s: %v", device.DeviceID, err)
				continue
			}
			result = append(result, collector)
		case "RESTCONF":
			collector, err := collectors.NewRESTCONFCollector(collectors.RESTCONFConfig{
				Device:       info,
				BaseURL:      device.BaseURL,
				Username:     device.Username,
				Password:     device.Password,
				Endpoints:    device.Endpoints,
				PollInterval: cfg.RESTCONFPollInterval(),
			}, sink, logger)
			if err != nil {
				logger.Printf("skipping restconf device %s: %v", device.DeviceID, err)
				continue
			}
			result = append(result, collector)
		case "MQTT":
			collector, err := collectors.NewMQTTCollector(collectors.MQTTConfig{
				Device: info,
				Broker: device.Broker,
				Port:   device.Port,
				Topics: device.Topics,
				QoS:    byte(cfg.Collectors.MQTTQoS),
			}, sink, logger)
			if err != nil {
				logger.Printf("skipping mqtt device %s: %v", device.DeviceID, err)
				continue
			}
			result = append(result, collector)
		}
	}

	if len(simulated) > 0 {
		simulator, err := collectors.NewSimulator(collectors.SimulatorConfig{
			Devices:      simulated,
			PollInterval: cfg.SNMPPollInterval(),
		}, sink, logger)
		if err != nil {
			logger.Printf("simulator disabled: %v", err)
		} else {
			result = append(result, simulator)
		}
	}
	return result
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
