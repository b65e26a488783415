// Package cleanup sends dictated text to a generative model for spelling,
// punctuation and paragraph fixes.
package cleanup

import "strings"

const promptTemplate = `Aşağıdaki metin sesli dikte ile yazıldı. Şunları yap:
1. Yazım ve noktalama hatalarını düzelt.
2. Anlam bütünlüğünü kontrol et, ancak ana anlamı asla değiştirme.
3. Konunun değiştiği yerlerde yeni paragraf başlat (boş satır ekle).
4. Orijinal anlamı, seçilen kelimeleri ve cümle yapısını kesinlikle koru; yalnızca yukarıdaki düzeltmeleri yap.
5. Yanıt olarak yalnızca düzeltilmiş metni döndür, hiçbir açıklama ekleme.

İşlenecek metin:
---
{{TEXT}}
---
İşlenmiş metin:`

// BuildPrompt embeds text in the fixed instruction template.
func BuildPrompt(text string) string {
	return strings.Replace(promptTemplate, "{{TEXT}}", text, 1)
}
