package metrics

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sqlStartKey        = "alora:sql_start"
	DefaultSlowQuery   = 200 * time.Millisecond
	sqlAnalyzerLogSize = 512
)

// SQLAnalyzer gorm 插件：按表和操作记录查询耗时，慢查询打日志并带上链路 ID
type SQLAnalyzer struct {
	metrics *Metrics
	log     *zap.Logger
	slow    time.Duration
}

func NewSQLAnalyzer(m *Metrics, slow time.Duration, log *zap.Logger) *SQLAnalyzer {
	if slow <= 0 {
		slow = DefaultSlowQuery
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SQLAnalyzer{metrics: m, log: log, slow: slow}
}

func (a *SQLAnalyzer) Name() string { return "alora:sql_analyzer" }

// Initialize 在 create/query/update/delete/row/raw 前后挂回调
func (a *SQLAnalyzer) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	errs := []error{
		cb.Create().Before("gorm:create").Register("alora:before_create", a.start),
		cb.Create().After("gorm:create").Register("alora:after_create", a.after("create")),
		cb.Query().Before("gorm:query").Register("alora:before_query", a.start),
		cb.Query().After("gorm:query").Register("alora:after_query", a.after("query")),
		cb.Update().Before("gorm:update").Register("alora:before_update", a.start),
		cb.Update().After("gorm:update").Register("alora:after_update", a.after("update")),
		cb.Delete().Before("gorm:delete").Register("alora:before_delete", a.start),
		cb.Delete().After("gorm:delete").Register("alora:after_delete", a.after("delete")),
		cb.Row().Before("gorm:row").Register("alora:before_row", a.start),
		cb.Row().After("gorm:row").Register("alora:after_row", a.after("row")),
		cb.Raw().Before("gorm:raw").Register("alora:before_raw", a.start),
		cb.Raw().After("gorm:raw").Register("alora:after_raw", a.after("raw")),
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *SQLAnalyzer) start(tx *gorm.DB) {
	tx.InstanceSet(sqlStartKey, time.Now())
}

func (a *SQLAnalyzer) after(op string) func(*gorm.DB) {
	return func(tx *gorm.DB) { a.finish(tx, op) }
}

func (a *SQLAnalyzer) finish(tx *gorm.DB, op string) {
	v, ok := tx.InstanceGet(sqlStartKey)
	if !ok {
		return
	}
	began, ok := v.(time.Time)
	if !ok {
		return
	}
	d := time.Since(began)
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}
	slow := d >= a.slow
	a.metrics.RecordDBQuery(table, op, d, slow)
	if !slow {
		return
	}
	sql := tx.Statement.SQL.String()
	if len(sql) > sqlAnalyzerLogSize {
		sql = sql[:sqlAnalyzerLogSize] + "..."
	}
	fields := []zap.Field{
		zap.String("table", table),
		zap.String("operation", op),
		zap.Duration("took", d),
		zap.Int64("rows", tx.Statement.RowsAffected),
		zap.String("sql", strings.TrimSpace(sql)),
	}
	if ctx := tx.Statement.Context; ctx != nil {
		if id := TraceID(ctx); id != "" {
			fields = append(fields, zap.String("trace_id", id))
		}
	}
	if tx.Error != nil {
		fields = append(fields, zap.Error(tx.Error))
	}
	a.log.Warn("slow query", fields...)
}
