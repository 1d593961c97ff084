package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// cloudWatchAPI is the subset of the CloudWatch client used here.
type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
	PutDashboard(ctx context.Context, in *cloudwatch.PutDashboardInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error)
}

var (
	cwMu        sync.RWMutex
	cwClient    cloudWatchAPI
	cwNamespace = "CryptoDash"
	cwDashboard = "CryptoDash"
)

// InitCloudWatch creates the CloudWatch client. Region falls back to
// AWS_REGION. Failures leave publishing disabled and are returned so the caller
// can decide whether to continue.
func InitCloudWatch(ctx context.Context, region, namespace, dashboard string) error {
	log := GetLogger().WithComponent("cloudwatch")

	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return fmt.Errorf("load aws config: %w", err)
	}

	setCloudWatchClient(cloudwatch.NewFromConfig(cfg), namespace, dashboard)
	log.WithFields(Fields{"region": region, "namespace": namespace}).Info("initialized CloudWatch client")
	return nil
}

func setCloudWatchClient(client cloudWatchAPI, namespace, dashboard string) {
	cwMu.Lock()
	defer cwMu.Unlock()
	cwClient = client
	if namespace != "" {
		cwNamespace = namespace
	}
	if dashboard != "" {
		cwDashboard = dashboard
	}
}

// CloudWatchEnabled reports whether InitCloudWatch succeeded.
func CloudWatchEnabled() bool {
	cwMu.RLock()
	defer cwMu.RUnlock()
	return cwClient != nil
}

// PublishMetric sends one datum to CloudWatch. It is a no-op until
// InitCloudWatch succeeds. Dimensions are sorted for stable requests.
func PublishMetric(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit, dimensions map[string]string) {
	cwMu.RLock()
	client, namespace := cwClient, cwNamespace
	cwMu.RUnlock()

	log := GetLogger().WithComponent("cloudwatch")
	if client == nil {
		log.Debug("CloudWatch client not initialized; skipping metric publish")
		return
	}

	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dims := make([]cwtypes.Dimension, 0, len(keys))
	for _, k := range keys {
		dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(dimensions[k])})
	}

	if _, err := client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(namespace),
		MetricData: []cwtypes.MetricDatum{{
			MetricName: aws.String(name),
			Dimensions: dims,
			Unit:       unit,
			Value:      aws.Float64(value),
		}},
	}); err != nil {
		log.WithError(err).WithField("metric", name).Warn("failed to publish CloudWatch metric")
		return
	}
	log.WithField("metric", name).Debug("published metric to CloudWatch")
}

type dashboardWidget struct {
	Type       string           `json:"type"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Properties widgetProperties `json:"properties"`
}

type widgetProperties struct {
	Metrics [][]string `json:"metrics"`
	Period  int        `json:"period"`
	Stat    string     `json:"stat"`
	Title   string     `json:"title"`
}

// dashboardMetrics are charted for every panel.
var dashboardMetrics = []string{"refresh_ready", "refresh_error", "fetch_failed"}

// PanelDimensions is the dimension set refresh metrics are published with.
// CloudWatch matches on the exact set, so widgets query the same one.
func PanelDimensions(panel string) map[string]string {
	return map[string]string{"panel": panel}
}

// WidgetMetrics returns the dashboard metric rows for one panel in the
// [namespace, name, dimName, dimValue...] form, dimensions sorted.
func WidgetMetrics(namespace, panel string) [][]string {
	dims := PanelDimensions(panel)
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(dashboardMetrics))
	for _, name := range dashboardMetrics {
		row := []string{namespace, name}
		for _, k := range keys {
			row = append(row, k, dims[k])
		}
		rows = append(rows, row)
	}
	return rows
}

// dashboardBody lays out one row per panel with its cycle outcomes.
func dashboardBody(namespace string, panels []string) (string, error) {
	widgets := make([]dashboardWidget, 0, len(panels))
	for _, p := range panels {
		widgets = append(widgets, dashboardWidget{
			Type:   "metric",
			Width:  24,
			Height: 6,
			Properties: widgetProperties{
				Metrics: WidgetMetrics(namespace, p),
				Period:  300,
				Stat:    "Sum",
				Title:   p + " refresh outcomes",
			},
		})
	}
	body, err := json.Marshal(map[string]interface{}{"widgets": widgets})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// CreateDefaultDashboard ensures a CloudWatch dashboard exists for the given
// panels. Failures are logged only.
func CreateDefaultDashboard(ctx context.Context, panels []string) {
	cwMu.RLock()
	client, namespace, dashboard := cwClient, cwNamespace, cwDashboard
	cwMu.RUnlock()
	if client == nil {
		return
	}

	log := GetLogger().WithComponent("cloudwatch")
	body, err := dashboardBody(namespace, panels)
	if err != nil {
		log.WithError(err).Warn("failed to build CloudWatch dashboard body")
		return
	}

	if _, err := client.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(dashboard),
		DashboardBody: aws.String(body),
	}); err != nil {
		log.WithError(err).Warn("failed to create CloudWatch dashboard")
	}
}
