// Package sentiment provides lexicon-driven scoring of Korean market news.
// All scoring functions are pure and perform no I/O once constructed.
package sentiment

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Compound is a multi-word expression whose polarity overrides the
// keywords it contains.
type Compound struct {
	Phrase   string `toml:"phrase" yaml:"phrase" validate:"required"`
	Polarity int    `toml:"polarity" yaml:"polarity" validate:"oneof=-1 1"`
}

// Lexicon holds every word list and lookup table the scorers use
type Lexicon struct {
	Positive       []string   `toml:"positive" yaml:"positive"`
	Negative       []string   `toml:"negative" yaml:"negative"`
	StrongPositive []string   `toml:"strong_positive" yaml:"strong_positive"`
	StrongNegative []string   `toml:"strong_negative" yaml:"strong_negative"`
	Compounds      []Compound `toml:"compounds" yaml:"compounds" validate:"dive"`
	Negations      []string   `toml:"negations" yaml:"negations"`
	NegationWindow int        `toml:"negation_window" yaml:"negation_window" validate:"gte=0"`

	Importance []string `toml:"importance" yaml:"importance"`
	Impact     []string `toml:"impact" yaml:"impact"`

	SourceCredibility map[string]float64 `toml:"source_credibility" yaml:"source_credibility" validate:"dive,gte=0,lte=1"`
	CategoryWeights   map[string]float64 `toml:"category_weights" yaml:"category_weights" validate:"dive,gte=0,lte=1"`
	DefaultSource     float64            `toml:"default_source" yaml:"default_source" validate:"gte=0,lte=1"`
	DefaultCategory   float64            `toml:"default_category" yaml:"default_category" validate:"gte=0,lte=1"`
}

// DefaultLexicon returns the built-in Korean market lexicon
func DefaultLexicon() Lexicon {
	return Lexicon{
		Positive: []string{
			"상승", "증가", "성장", "호재", "실적 호조", "실적 개선", "수익 증가",
			"매출 증가", "영업이익 증가", "순이익 증가", "실적 부진 탈출",
			"반등", "회복", "개선", "향상", "증대", "확대", "성공", "최고치", "사상 최대",
			"투자 유치", "계약 체결", "수주", "납품", "공급 계약", "독점",
			"제휴", "협력", "파트너십", "업무협약",
			"긍정적", "낙관적", "기대", "전망 밝다", "유리하다", "재평가",
			"강세", "상승세", "상승 전망", "목표가 상향", "투자의견 상향", "매수 추천",
			"기술 개발", "특허", "신제품", "혁신", "세계 최초", "국내 최초",
			"러브콜", "잭팟",
			"수주 잔고 증가", "신규 수주", "공급 부족", "품절", "대기 수요",
			"가이던스 상향", "컨센서스 상회", "어닝 서프라이즈",
			"자사주 매입", "배당 확대", "배당 증가",
		},
		Negative: []string{
			"하락", "감소", "손실", "부진", "실적 부진", "실적 악화",
			"수익 감소", "매출 감소", "영업이익 감소", "순이익 감소",
			"적자", "손해", "채무", "부채 증가", "자본잠식",
			"부정적", "비관적", "우려", "우려 증대", "리스크", "불확실성",
			"약세", "하락세", "하락 전망", "목표가 하향", "투자의견 하향", "매도 의견",
			"사고", "사건", "논란", "분쟁", "법적 대응",
			"제재", "조사", "수사", "기소", "압수수색", "벌금", "과징금",
			"수주 감소", "재고 증가", "가동률 하락",
			"가이던스 하향", "컨센서스 하회", "어닝 쇼크",
			"유상증자", "CB 발행", "대주주 매도", "지분 매각",
			"경영진 교체", "사퇴", "해임", "경영 위기", "횡령", "배임",
			"파업", "노조", "갈등", "내분",
			"폭락", "급락", "매도", "매도세", "하락 압력", "공매도", "반대매매",
		},
		StrongPositive: []string{"공급계약", "수주 성공", "영업이익 폭증", "인수 합병", "임상 성공", "상한가"},
		StrongNegative: []string{"상장폐지", "횡령", "배임", "영업이익 급감", "임상 실패", "부도", "하한가"},
		Compounds: []Compound{
			{"하락 우려 해소", 1},
			{"우려 해소", 1},
			{"우려 불식", 1},
			{"부진 탈출", 1},
			{"적자 탈출", 1},
			{"하락세 반등", 1},
			{"하락세에서 반등", 1},
			{"약세 탈피", 1},
			{"손실 만회", 1},
			{"위기 극복", 1},
			{"리스크 해소", 1},
			{"불확실성 해소", 1},
			{"매도세 진정", 1},
			{"하락 제한적", 1},
			{"상승세 꺾여", -1},
			{"상승세 꺾이", -1},
			{"상승 기대 꺾", -1},
			{"성장 둔화", -1},
			{"성장세 둔화", -1},
			{"회복 지연", -1},
			{"반등 실패", -1},
			{"기대 이하", -1},
			{"기대에 못 미치", -1},
			{"기대 못 미치", -1},
			{"호재 소진", -1},
			{"강세 꺾여", -1},
			{"강세 꺾이", -1},
			{"상승 제한적", -1},
			{"개선 더뎌", -1},
			{"회복 더뎌", -1},
			{"수주 감소", -1},
		},
		Negations: []string{
			"안", "못", "없", "아닌", "않", "꺾", "불", "미",
			"무산", "철회", "취소", "중단", "포기", "실패",
		},
		NegationWindow: 2,
		Importance: []string{
			"실적 발표", "분기 실적", "연간 실적", "공시", "공시사항",
			"인수합병", "M&A", "합병", "인수", "매각",
			"신규 사업", "사업 확장", "투자 결정", "대규모 투자",
			"CEO", "경영진", "주주총회", "배당",
			"상장", "상장폐지", "관리종목", "거래정지",
			"규제", "정부 정책", "법안", "세법",
		},
		Impact: []string{
			"대형", "메가", "조 단위", "억 단위",
			"최초", "최대", "최고", "역대",
			"급등", "급락", "폭등", "폭락",
			"상한가", "하한가", "서킷브레이커",
			"외국인 매수", "외국인 매도", "기관 매수", "기관 매도",
		},
		SourceCredibility: map[string]float64{
			"hankyung":       0.8,
			"mk_news":        0.8,
			"naver_finance":  0.9,
			"krx_disclosure": 1.0,
			"yonhap_infomax": 0.8,
		},
		CategoryWeights: map[string]float64{
			"증시":   1.0,
			"금융시장": 1.0,
			"경제":   0.9,
			"산업":   0.8,
			"기술":   0.8,
			"국제":   0.7,
			"유통":   0.7,
		},
		DefaultSource:   0.5,
		DefaultCategory: 0.5,
	}
}

// LoadLexiconFile overlays the lists present in a TOML file onto the
// default lexicon. Lists absent from the file keep their defaults.
func LoadLexiconFile(path string) (Lexicon, error) {
	lex := DefaultLexicon()
	if path == "" {
		return lex, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("failed to read lexicon file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("failed to parse lexicon file %s: %w", path, err)
	}
	return lex, nil
}

// sourceCredibility returns the credibility of a source, or the default
func (l Lexicon) sourceCredibility(source string) float64 {
	if v, ok := l.SourceCredibility[source]; ok {
		return v
	}
	return l.DefaultSource
}

// categoryWeight returns the weight of a category, or the default
func (l Lexicon) categoryWeight(category string) float64 {
	if v, ok := l.CategoryWeights[category]; ok {
		return v
	}
	return l.DefaultCategory
}
