package service

// Actor 发起操作的用户和来源 IP，写审计日志用
type Actor struct {
	UserID *int64
	IP     string
}

func ActorOf(userID int64, ip string) Actor {
	if userID <= 0 {
		return Actor{IP: ip}
	}
	id := userID
	return Actor{UserID: &id, IP: ip}
}

// nonBlank 更新接口中给了值的字段不能是空白
func nonBlank(fields map[string]*string) error {
	out := &ValidationError{}
	for name, v := range fields {
		if v != nil && trimmed(*v) == "" {
			out.Fields = append(out.Fields, FieldError{Field: name, Message: "不能为空"})
		}
	}
	if len(out.Fields) == 0 {
		return nil
	}
	sortFields(out.Fields)
	return out
}
