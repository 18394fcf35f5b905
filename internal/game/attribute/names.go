// Package attribute holds a character's numeric statistics and enforces the
// clamping and derived-value rules applied whenever one of them changes.
package attribute

// Name identifies one attribute in the closed PF2 attribute set.
type Name string

// Progression and ability scores.
const (
	Experience   Name = "experience"
	AbBoostCount Name = "ab_boost_count"
	AbBoostLimit Name = "ab_boost_limit"

	AbStrength             Name = "ab_strength"
	AbStrengthModifier     Name = "ab_strength_modifier"
	AbDexterity            Name = "ab_dexterity"
	AbDexterityModifier    Name = "ab_dexterity_modifier"
	AbConstitution         Name = "ab_constitution"
	AbConstitutionModifier Name = "ab_constitution_modifier"
	AbIntelligence         Name = "ab_intelligence"
	AbIntelligenceModifier Name = "ab_intelligence_modifier"
	AbWisdom               Name = "ab_wisdom"
	AbWisdomModifier       Name = "ab_wisdom_modifier"
	AbCharisma             Name = "ab_charisma"
	AbCharismaModifier     Name = "ab_charisma_modifier"
)

// Defenses, movement and hit points.
const (
	ClassDifficultyClass Name = "class_difficulty_class"
	Speed                Name = "speed"
	MaxSpeed             Name = "max_speed"
	ArmorClass           Name = "armor_class"
	StFortitudeModifier  Name = "st_fortitude_modifier"
	StReflexModifier     Name = "st_reflex_modifier"
	StWillModifier       Name = "st_will_modifier"
	HitPoints            Name = "hit_points"
	MaxHitPoints         Name = "max_hit_points"
)

// Resistances.
const (
	RstPhysicalBludgeoning Name = "rst_physical_bludgeoning"
	RstPhysicalPiercing    Name = "rst_physical_piercing"
	RstPhysicalSlashing    Name = "rst_physical_slashing"
	RstEnergyAcid          Name = "rst_energy_acid"
	RstEnergyCold          Name = "rst_energy_cold"
	RstEnergyFire          Name = "rst_energy_fire"
	RstEnergySonic         Name = "rst_energy_sonic"
	RstEnergyPositive      Name = "rst_energy_positive"
	RstEnergyNegative      Name = "rst_energy_negative"
	RstEnergyForce         Name = "rst_energy_force"
	RstAlignmentChaotic    Name = "rst_alignment_chaotic"
	RstAlignmentEvil       Name = "rst_alignment_evil"
	RstAlignmentGood       Name = "rst_alignment_good"
	RstAlignmentLawful     Name = "rst_alignment_lawful"
	RstMental              Name = "rst_mental"
	RstPoison              Name = "rst_poison"
	RstBleed               Name = "rst_bleed"
	RstPrecision           Name = "rst_precision"
)

// Perception, skills and spellcasting.
const (
	PerceptionModifier     Name = "perception_modifier"
	SkAcrobaticsModifier   Name = "sk_acrobatics_modifier"
	SkArcanaModifier       Name = "sk_arcana_modifier"
	SkAthleticsModifier    Name = "sk_athletics_modifier"
	SkCraftingModifier     Name = "sk_crafting_modifier"
	SkDeceptionModifier    Name = "sk_deception_modifier"
	SkDiplomacyModifier    Name = "sk_diplomacy_modifier"
	SkIntimidationModifier Name = "sk_intimidation_modifier"
	SkLore1Modifier        Name = "sk_lore1_modifier"
	SkLore2Modifier        Name = "sk_lore2_modifier"
	SkMedicineModifier     Name = "sk_medicine_modifier"
	SkNatureModifier       Name = "sk_nature_modifier"
	SkOccultismModifier    Name = "sk_occultism_modifier"
	SkPerformanceModifier  Name = "sk_performance_modifier"
	SkReligionModifier     Name = "sk_religion_modifier"
	SkSocietyModifier      Name = "sk_society_modifier"
	SkStealthModifier      Name = "sk_stealth_modifier"
	SkSurvivalModifier     Name = "sk_survival_modifier"
	SkThieveryModifier     Name = "sk_thievery_modifier"
	SpellAttackRoll        Name = "spell_attack_roll"
	SpellDifficultyClass   Name = "spell_difficulty_class"
)

// Feats, encounter resources and transient meta attributes.
const (
	FeAncestryFeatCount Name = "fe_ancestry_feat_count"
	FeAncestryFeatLimit Name = "fe_ancestry_feat_limit"

	// EncActionPoints is the pool of actions left in the current turn.
	EncActionPoints Name = "enc_action_points"
	// EncReactionPoints is the pool of reactions left until the character's next turn.
	EncReactionPoints Name = "enc_reaction_points"

	// TmpDamageIncoming accumulates damage computed by an effect. It is consumed
	// immediately by ApplyDamage and never replicated.
	TmpDamageIncoming Name = "tmp_damage_incoming"
)

var all = []Name{
	Experience, AbBoostCount, AbBoostLimit,
	AbStrength, AbStrengthModifier, AbDexterity, AbDexterityModifier,
	AbConstitution, AbConstitutionModifier, AbIntelligence, AbIntelligenceModifier,
	AbWisdom, AbWisdomModifier, AbCharisma, AbCharismaModifier,
	ClassDifficultyClass, Speed, MaxSpeed, ArmorClass,
	StFortitudeModifier, StReflexModifier, StWillModifier,
	HitPoints, MaxHitPoints,
	RstPhysicalBludgeoning, RstPhysicalPiercing, RstPhysicalSlashing,
	RstEnergyAcid, RstEnergyCold, RstEnergyFire, RstEnergySonic, RstEnergyPositive,
	RstEnergyNegative, RstEnergyForce,
	RstAlignmentChaotic, RstAlignmentEvil, RstAlignmentGood, RstAlignmentLawful,
	RstMental, RstPoison, RstBleed, RstPrecision,
	PerceptionModifier,
	SkAcrobaticsModifier, SkArcanaModifier, SkAthleticsModifier, SkCraftingModifier,
	SkDeceptionModifier, SkDiplomacyModifier, SkIntimidationModifier,
	SkLore1Modifier, SkLore2Modifier, SkMedicineModifier, SkNatureModifier,
	SkOccultismModifier, SkPerformanceModifier, SkReligionModifier, SkSocietyModifier,
	SkStealthModifier, SkSurvivalModifier, SkThieveryModifier,
	SpellAttackRoll, SpellDifficultyClass,
	FeAncestryFeatCount, FeAncestryFeatLimit,
	EncActionPoints, EncReactionPoints,
	TmpDamageIncoming,
}

var known = func() map[Name]struct{} {
	m := make(map[Name]struct{}, len(all))
	for _, n := range all {
		m[n] = struct{}{}
	}
	return m
}()

// maxOf maps a current-value attribute to its paired maximum.
var maxOf = map[Name]Name{
	HitPoints: MaxHitPoints,
	Speed:     MaxSpeed,
}

// currentOf is the inverse of maxOf.
var currentOf = map[Name]Name{
	MaxHitPoints: HitPoints,
	MaxSpeed:     Speed,
}

// abilityModifiers maps each ability score to its derived modifier.
var abilityModifiers = map[Name]Name{
	AbStrength:     AbStrengthModifier,
	AbDexterity:    AbDexterityModifier,
	AbConstitution: AbConstitutionModifier,
	AbIntelligence: AbIntelligenceModifier,
	AbWisdom:       AbWisdomModifier,
	AbCharisma:     AbCharismaModifier,
}

// All returns every attribute name in declaration order.
func All() []Name {
	out := make([]Name, len(all))
	copy(out, all)
	return out
}

// Valid reports whether n belongs to the attribute set.
func Valid(n Name) bool {
	_, ok := known[n]
	return ok
}

// MaxOf returns the paired maximum of n, if n has one.
func MaxOf(n Name) (Name, bool) {
	m, ok := maxOf[n]
	return m, ok
}

// Replicated reports whether n is sent to remote observers. Transient meta
// attributes stay on the server.
func Replicated(n Name) bool {
	return Valid(n) && n != TmpDamageIncoming
}
