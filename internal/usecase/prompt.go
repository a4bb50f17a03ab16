package usecase

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"autoshorts/internal/domain/model"
)

const SystemInstructionScript = `
Tu es un expert en création de contenu viral pour TikTok/Reels en France.
Ta mission est de créer une vidéo courte optimisée pour la RÉTENTION (Watchtime) et l'ENGAGEMENT (Commentaires).

RÈGLES DE STRUCTURE GÉNÉRALE :
1. **SCÈNE 1 (LE HOOK - 0 à 3s) :** Agressif, visuel, immédiat.
2. **CORPS :** Valeur, Histoire ou Dilemme.
3. **FIN :** Call-to-Action clair.

SPECIFICITÉS SELON LE TYPE :

1. **SCHOOL_TIPS / MOTIVATION :**
   - Ton : Mentor, Coach.
   - Visuel : Dynamique, studieux, réussite.

2. **SCARY_STORY (Horreur) :**
   - Ton : Lent, grave, mystérieux.
   - Structure : Fait réel effrayant ou légende urbaine courte.
   - Visuels : Sombres, ombres, atmosphère "liminal spaces", inquiétant.

3. **WOULD_YOU_RATHER (Tu préfères) :**
   - Ton : Provocateur, rapide.
   - Structure :
     - S1 : "Tu préfères..."
     - S2 : Option A (Situation extrême/drôle).
     - S3 : Option B (Situation encore pire/meilleure).
     - S4 : "Dis-moi ton choix en commentaire !"
   - Visuels : Split screen conceptuel, couleurs opposées (Rouge vs Bleu).

4. **SHOWER_THOUGHTS (Pensées de douche) :**
   - Ton : "Mind blown", philosophique, lent.
   - Structure : "Réalisation soudaine" sur la vie quotidienne.
   - Visuels : Abstraits, satisfaisants, boucles visuelles, eau, espace.

Format de Sortie (JSON uniquement) :
- "trending_topic": Titre Clickbait.
- "character_description": Description visuelle.
- "full_script": Le script complet.
- "scenes": Tableau d'objets :
   - "visual_prompt": Description pour Veo. Cinématique, haute qualité.
   - "narration": Texte lu.
`

// SystemInstructionTrigger drives the single-shot scheduled trigger run.
const SystemInstructionTrigger = `
Tu es un expert en création de contenu viral pour TikTok/Reels (Short Form Content).
Ta mission est de maximiser la RÉTENTION (Watchtime) et l'ENGAGEMENT.

MODE VIRAL : ACTIVÉ PAR DÉFAUT.
1. HOOK (0-3s) : Doit être agressif, surprenant ou contrintuitif.
2. TON : Rapide, dynamique, sans mots inutiles.
3. FIN : Oblige l'utilisateur à commenter (Question dilemme, défi, avis tranché).

Format de sortie JSON attendu :
{
  "topic": "Titre Clickbait",
  "script": "Script complet avec indications de voix off",
  "visual_prompt": "Description visuelle cinématique pour IA vidéo (Veo)"
}
`

var ViralHooks = []string{
	"Arrête de scroller si tu veux réussir !",
	"Ce secret que les profs ne te disent pas...",
	"99% des gens se trompent sur ça.",
	"La vérité dérangeante sur ton avenir.",
	"Tu perds ton temps si tu fais ça.",
	"Regarde ça avant qu'il soit trop tard.",
	"Ton cerveau te ment, voici la preuve.",
	"Ne regarde pas ça seul le soir...",
	"Tu préfères A ou B ? Choisis vite !",
	"Cette pensée va t'empêcher de dormir.",
}

var ViralCTAs = []string{
	"Et toi, t'en penses quoi ? Dis-le en comm !",
	"Tag un pote qui a besoin de voir ça 👇",
	"Abonne-toi pour devenir plus intelligent demain.",
	"Enregistre la vidéo pour pas oublier, c'est important.",
	"Mets un 🔥 si tu valides !",
	"Dis-moi ton choix en commentaire !",
	"Envoie ça à quelqu'un qui doit savoir.",
}

const AdScript = `
[SCÈNE PUBLICITAIRE - À INSÉRER AU MILIEU]
Narration : "Pause ! Tu veux que ton école passe de Zéro à Héros ?"
Visuel : Un graphique de notes qui monte en flèche, style dynamique, texte "0 à Héro" à l'écran.
Narration : "Découvre EduEasy sur edueasy.net. C'est l'outil de gestion tout-en-un."
Visuel : Logo EduEasy moderne, interface d'application propre sur un téléphone.
Narration : "Notre slogan ? Zéro échec scolaire. Infos sur WhatsApp au 01 57 66 08 74 !"
Visuel : Le numéro WhatsApp 0157660874 affiché en gros avec le texte "0 échec scolaire".
`

// AdScene is the fixed advertisement placed at scene AdScenePosition.
var AdScene = model.Scene{
	Narration: "Pause ! Tu veux que ton école passe de Zéro à Héros ? " +
		"Découvre EduEasy sur edueasy.net. C'est l'outil de gestion tout-en-un. " +
		"Notre slogan ? Zéro échec scolaire. Infos sur WhatsApp au 01 57 66 08 74 !",
	VisualPrompt: "Un graphique de notes qui monte en flèche, style dynamique, texte \"0 à Héro\" à l'écran, " +
		"puis le logo EduEasy moderne sur un téléphone, puis le numéro WhatsApp 0157660874 " +
		"affiché en gros avec le texte \"0 échec scolaire\"",
}

const (
	TemperatureViral  float32 = 1.0
	TemperatureNormal float32 = 0.85
	TemperatureCron   float32 = 0.9

	VideoPromptSuffix   = ", cinematic, 4k, high quality, photorealistic, french atmosphere"
	TriggerPromptSuffix = ", cinematic, 4k, photorealistic"
)

// ScriptPrompt is a fully built script request plus the phrases drawn for it.
type ScriptPrompt struct {
	Prompt      string
	System      string
	Temperature float32
	Hook        string
	CTA         string
}

// PromptBuilder draws hooks and CTAs from the fixed pools.
type PromptBuilder struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPromptBuilder(src rand.Source) *PromptBuilder {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>7|1)
	}
	return &PromptBuilder{rnd: rand.New(src)}
}

func (b *PromptBuilder) pick(pool []string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return pool[b.rnd.IntN(len(pool))]
}

// Build assembles the script prompt for a category.
func (b *PromptBuilder) Build(category model.Category, viral, ad bool) ScriptPrompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Trouve une tendance virale pour la catégorie : \"%s\". Génère la vidéo.", category)

	out := ScriptPrompt{System: SystemInstructionScript, Temperature: TemperatureNormal}
	if viral {
		out.Hook = b.pick(ViralHooks)
		out.CTA = b.pick(ViralCTAs)
		out.Temperature = TemperatureViral
		fmt.Fprintf(&sb, "\n\n[MODE VIRAL ACTIVÉ] :\n"+
			"1. FORCE ce Hook précis pour la Scène 1 (c'est impératif) : \"%s\"\n"+
			"2. FORCE ce Call-To-Action précis pour la dernière scène : \"%s\"\n"+
			"3. Le ton doit être CHOC, RAPIDE et PROVOCANT. Pas de phrases molles.", out.Hook, out.CTA)
	} else {
		sb.WriteString("\n\nTon : Naturel, Engageant mais bienveillant.")
	}

	if ad {
		fmt.Fprintf(&sb, "\n\nIMPORTANT: Tu DOIS générer %d SCÈNES au total. La scène %d DOIT être cette publicité "+
			"(ne change pas les infos clés : EduEasy, edueasy.net, 0157660874, \"0 échec scolaire\", \"0 à Héro\") :\n%s",
			model.ScenesWithAd, model.AdScenePosition, AdScript)
	} else {
		fmt.Fprintf(&sb, "\n\nGénère exactement %d scènes pour une structure virale rapide.", model.ScenesDefault)
	}

	out.Prompt = sb.String()
	return out
}

// CronPrompt is the single-shot viral prompt used by the scheduled trigger.
func CronPrompt(category model.Category) string {
	return fmt.Sprintf("Génère une vidéo virale courte pour la catégorie : %s. Mode Viral Activé.", category)
}
