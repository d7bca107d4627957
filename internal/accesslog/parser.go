// 本文件用于把反向代理访问日志解析为结构化记录
package accesslog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrUnparseable 表示日志行缺少可识别的状态码
var ErrUnparseable = errors.New("无法解析的访问日志")

// Format 表示访问日志格式
type Format string

const (
	// FormatAuto 以 { 开头按 JSON 解析 其余按文本解析
	FormatAuto Format = "auto"
	// FormatText 表示 nginx key=value 文本格式
	FormatText Format = "text"
	// FormatJSON 表示 nginx escape=json 格式
	FormatJSON Format = "json"
)

const nginxTimeLayout = "02/Jan/2006:15:04:05 -0700"

var (
	// [time_local] remote_addr "request" status 之后是任意顺序的 key=value
	textPrefix = regexp.MustCompile(`^\[([^\]]+)\]\s+(\S+)\s+"((?:[^"\\]|\\.)*)"\s+(\d{3})\b`)
	// 值可以带引号 也可以是 nginx 重试时输出的 "502, 200" 列表
	textField = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)=(?:"([^"]*)"|([^\s",]+(?:,\s*[^\s",=]+)*))`)
)

// Parser 解析访问日志行
// 序号在解析成功时递增 调用方需保证单协程顺序调用
type Parser struct {
	format Format
	pools  PoolMapper
	source ErrorSource
	seq    uint64
}

// NewParser 创建解析器
func NewParser(format Format, pools PoolMapper, source ErrorSource) *Parser {
	if format == "" {
		format = FormatAuto
	}
	if source == "" {
		source = ErrorFromUpstream
	}
	return &Parser{format: format, pools: pools, source: source}
}

// Pools 返回池映射
func (p *Parser) Pools() PoolMapper {
	return p.pools
}

// Parse 解析一行日志 arrived 为读取时间 日志中无时间时使用
func (p *Parser) Parse(line string, arrived time.Time) (Record, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Record{}, fmt.Errorf("%w: 空行", ErrUnparseable)
	}
	var (
		rec fields
		err error
	)
	switch p.format {
	case FormatJSON:
		rec, err = parseJSON(trimmed)
	case FormatText:
		rec, err = parseText(trimmed)
	default:
		if strings.HasPrefix(trimmed, "{") {
			rec, err = parseJSON(trimmed)
		} else {
			rec, err = parseText(trimmed)
		}
	}
	if err != nil {
		return Record{}, err
	}

	status, err := parseStatus(rec.status)
	if err != nil {
		return Record{}, fmt.Errorf("%w: status=%q", ErrUnparseable, rec.status)
	}
	upstream := parseStatusList(rec.upstreamStatus)

	p.seq++
	out := Record{
		Seq:                  p.seq,
		Time:                 parseTime(rec.time, arrived),
		ClientAddr:           rec.clientAddr,
		Request:              rec.request,
		Pool:                 p.pools.Map(rec.pool),
		RawPool:              rec.pool,
		Release:              cleanDash(rec.release),
		Status:               status,
		UpstreamStatuses:     upstream,
		UpstreamAddr:         cleanDash(rec.upstreamAddr),
		RequestTime:          parseSeconds(rec.requestTime),
		UpstreamResponseTime: parseSeconds(rec.upstreamResponseTime),
	}
	out.IsError = classifyError(p.source, status, upstream)
	return out, nil
}

type fields struct {
	time                 string
	clientAddr           string
	request              string
	status               string
	pool                 string
	release              string
	upstreamStatus       string
	upstreamAddr         string
	requestTime          string
	upstreamResponseTime string
}

func parseText(line string) (fields, error) {
	var out fields
	rest := line
	if m := textPrefix.FindStringSubmatchIndex(line); m != nil {
		out.time = line[m[2]:m[3]]
		out.clientAddr = line[m[4]:m[5]]
		out.request = line[m[6]:m[7]]
		out.status = line[m[8]:m[9]]
		rest = line[m[1]:]
	}
	for _, match := range textField.FindAllStringSubmatch(rest, -1) {
		value := match[2]
		if value == "" {
			value = match[3]
		}
		switch strings.ToLower(match[1]) {
		case "pool":
			out.pool = value
		case "release":
			out.release = value
		case "status":
			if out.status == "" {
				out.status = value
			}
		case "upstream_status":
			out.upstreamStatus = value
		case "upstream_addr":
			out.upstreamAddr = value
		case "request_time":
			out.requestTime = value
		case "upstream_response_time":
			out.upstreamResponseTime = value
		case "time", "time_local", "time_iso8601":
			if out.time == "" {
				out.time = value
			}
		}
	}
	if out.status == "" {
		return fields{}, fmt.Errorf("%w: 缺少状态码", ErrUnparseable)
	}
	return out, nil
}

func parseJSON(line string) (fields, error) {
	if !gjson.Valid(line) {
		return fields{}, fmt.Errorf("%w: JSON 格式错误", ErrUnparseable)
	}
	values := gjson.GetMany(line,
		"time", "time_iso8601", "time_local", "timestamp",
		"remote_addr", "request", "status", "pool", "release",
		"upstream_status", "upstream_addr", "request_time", "upstream_response_time",
	)
	out := fields{
		time:                 firstNonEmpty(values[0].String(), values[1].String(), values[2].String(), values[3].String()),
		clientAddr:           values[4].String(),
		request:              values[5].String(),
		status:               values[6].String(),
		pool:                 values[7].String(),
		release:              values[8].String(),
		upstreamStatus:       values[9].String(),
		upstreamAddr:         values[10].String(),
		requestTime:          values[11].String(),
		upstreamResponseTime: values[12].String(),
	}
	if !values[6].Exists() {
		return fields{}, fmt.Errorf("%w: 缺少状态码", ErrUnparseable)
	}
	return out, nil
}

func parseStatus(raw string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || code < 100 || code > 599 {
		return 0, fmt.Errorf("无效状态码: %q", raw)
	}
	return code, nil
}

// parseStatusList 解析 "502, 200" 或 "502 : 200" 形式的上游状态 "-" 被忽略
func parseStatusList(raw string) []int {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ':' || r == ' '
	})
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		if code, err := parseStatus(part); err == nil {
			out = append(out, code)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseTime(raw string, fallback time.Time) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	for _, layout := range []string{nginxTimeLayout, time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts
		}
	}
	return fallback
}

// parseSeconds 解析耗时 多次尝试时取最后一次
func parseSeconds(raw string) float64 {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ':' || r == ' '
	})
	for i := len(parts) - 1; i >= 0; i-- {
		if v, err := strconv.ParseFloat(parts[i], 64); err == nil {
			return v
		}
	}
	return 0
}

func cleanDash(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "-" {
		return ""
	}
	return trimmed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
