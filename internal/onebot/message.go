package onebot

// TextMessage 构造只含一个文本段的消息段数组，OneBot 11 的数组格式
func TextMessage(text string) []map[string]interface{} {
	return []map[string]interface{}{
		{
			"type": "text",
			"data": map[string]interface{}{"text": text},
		},
	}
}
