package ctxutil

import "context"

// requestIDKeyType 使用私有类型避免与其他 context key 冲突
type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// WithRequestID 将请求 ID 注入到 context 中
// 说明：在 RequestID 中间件中调用，后续日志和下游调用可以带上同一个 ID：
//
//	ctx := ctxutil.WithRequestID(c.Request.Context(), requestID)
//	c.Request = c.Request.WithContext(ctx)
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID 从 context 中解析请求 ID
// 返回值：
//   - string: 解析到的请求 ID
//   - bool  : 是否存在有效的请求 ID
func GetRequestID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v := ctx.Value(requestIDKey)
	id, ok := v.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
