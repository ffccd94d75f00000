package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pmwatch/sps30d/sps30"
)

var cfgFile = flag.String("f", "", "optional config `file` (yaml), settings also read from SPS30D_* environment")
var connTo = flag.String("c", "", "connection string, use socket://[host]:[port] for TCP or [serialDevice] for direct serial connection ")
var httpServe = flag.String("s", "", "start http server at [bindtohost][:]port")
var verbose = flag.Bool("v", false, "verbose logging")

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

// To be set via go build -ldflags "-X main.buildVersion=$(git describe --dirty) -X main.buildDate=$(date -u +%FT%TZ)"
var buildVersion = "unspecified"
var buildDate = "unknown"

var conn *sps30.Device

// sample is the newest measurement with the time it was read.
type sample struct {
	sps30.Measurement
	Time time.Time `json:"time"`
}

var (
	latestMu   sync.RWMutex
	latest     sample
	haveSample bool
)

func getMeasurement(w http.ResponseWriter, r *http.Request) {
	latestMu.RLock()
	s, ok := latest, haveSample
	latestMu.RUnlock()

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("\"no measurement yet\"\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	e.Encode(s)
}

func getDevice(w http.ResponseWriter, r *http.Request) {
	serial, err := conn.SerialNumber()
	if err != nil {
		httpError(w, err)
		return
	}
	version, err := conn.ReadVersion()
	if err != nil {
		httpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	e.Encode(struct {
		SerialNumber string            `json:"serial_number"`
		Version      sps30.VersionInfo `json:"version"`
	}{SerialNumber: serial, Version: version})
}

func getCleaningInterval(w http.ResponseWriter, r *http.Request) {
	interval, err := conn.ReadCleaningInterval()
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "{\"seconds\": %d}\n", interval)
}

func setCleaningInterval(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Seconds uint32 `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
		w.Write([]byte(err.Error()))
		return
	}
	if err := conn.WriteCleaningInterval(body.Seconds); err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("\"OK\"\n"))
}

func startFanCleaning(w http.ResponseWriter, r *http.Request) {
	if err := conn.StartFanCleaning(); err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("\"OK\"\n"))
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	v := struct {
		Version   string `json:"version"`
		BuildDate string `json:"build_date"`
	}{Version: buildVersion, BuildDate: buildDate}
	j, _ := json.Marshal(v)
	w.Write(j)
}

func httpError(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusInternalServerError)
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.Write([]byte(err.Error()))
}

func poll(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for range t.C {
		m, err := conn.ReadMeasurement()
		if err != nil {
			log.Warnf("read measurement: %v", err)
			exchangeErrors.Inc()
			continue
		}
		latestMu.Lock()
		latest = sample{Measurement: m, Time: time.Now()}
		haveSample = true
		latestMu.Unlock()
		recordMeasurement(m)
	}
}

func loadConfig() {
	viper.SetDefault("connection", "")
	viper.SetDefault("http", "")
	viper.SetDefault("poll_interval", time.Second)
	viper.SetDefault("logfile", "")

	viper.SetEnvPrefix("sps30d")
	viper.AutomaticEnv()

	if *cfgFile != "" {
		viper.SetConfigFile(*cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatalf("could not read config: %v", err)
		}
	}

	// flags win over config file and environment
	if *connTo != "" {
		viper.Set("connection", *connTo)
	}
	if *httpServe != "" {
		viper.Set("http", *httpServe)
	}
}

func main() {
	flag.Parse()
	loadConfig()

	if *verbose == true {
		log.SetLevel(log.DebugLevel)
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}
	if logfile := viper.GetString("logfile"); logfile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   logfile,
			MaxSize:    10, // MB
			MaxBackups: 3,
		})
	}

	if viper.GetString("connection") == "" {
		log.Fatal("Need connection string in -c option or config")
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	conn = &sps30.Device{}
	if err := conn.Connect(viper.GetString("connection")); err != nil {
		log.Fatalf("connect: %v", err)
	}

	if err := conn.Reset(); err != nil {
		log.Fatalf("reset: %v", err)
	}
	if err := conn.StartMeasurement(); err != nil {
		log.Fatalf("start measurement: %v", err)
	}
	log.Infof("Sensor in measurement mode, polling every %v", viper.GetDuration("poll_interval"))

	done := make(chan os.Signal, 1)

	signal.Notify(done,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	go func() {
		<-done

		if err := conn.StopMeasurement(); err != nil {
			log.Warnf("stop measurement: %v", err)
		}
		conn.Close()

		if *memprofile != "" {
			f, err := os.Create(*memprofile)
			if err != nil {
				log.Fatal("could not create memory profile: ", err)
			}
			runtime.GC() // get up-to-date statistics
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Fatal("could not write memory profile: ", err)
			}
			f.Close()
		}
		if *cpuprofile != "" {
			pprof.StopCPUProfile()
		}
		os.Exit(0)
	}()

	go poll(viper.GetDuration("poll_interval"))

	if addr := viper.GetString("http"); addr != "" {
		router := mux.NewRouter()

		router.HandleFunc("/measurement", getMeasurement).Methods("GET")
		router.HandleFunc("/device", getDevice).Methods("GET")
		router.HandleFunc("/version", versionInfo).Methods("GET")
		router.HandleFunc("/cleaning-interval", getCleaningInterval).Methods("GET")
		router.HandleFunc("/cleaning-interval", setCleaningInterval).Methods("PUT")
		router.HandleFunc("/fan-cleaning", startFanCleaning).Methods("POST")
		router.Handle("/metrics", promhttp.Handler())

		// accept :[portnum] as well as [portnum]
		if i, err := strconv.Atoi(addr); err == nil {
			addr = fmt.Sprintf(":%d", i)
		}

		h := &http.Server{Addr: addr, Handler: router}
		go func() { log.Error(h.ListenAndServe()) }()
	}

	select {}
}
