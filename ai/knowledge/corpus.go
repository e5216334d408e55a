package knowledge

// builtinCorpus covers the statute articles the consultation scenarios
// reach for most. It keeps the service usable without an external
// retrieval backend.
var builtinCorpus = []Document{
	// 劳动法
	{
		Source:   "《中华人民共和国劳动合同法》",
		Article:  "第十条",
		Content:  "建立劳动关系，应当订立书面劳动合同。已建立劳动关系，未同时订立书面劳动合同的，应当自用工之日起一个月内订立书面劳动合同。",
		Keywords: []string{"劳动合同", "书面合同", "入职", "用工"},
	},
	{
		Source:   "《中华人民共和国劳动合同法》",
		Article:  "第十九条",
		Content:  "劳动合同期限三个月以上不满一年的，试用期不得超过一个月；劳动合同期限一年以上不满三年的，试用期不得超过二个月；三年以上固定期限和无固定期限的劳动合同，试用期不得超过六个月。",
		Keywords: []string{"试用期", "期限", "劳动合同"},
	},
	{
		Source:   "《中华人民共和国劳动合同法》",
		Article:  "第四十条",
		Content:  "有下列情形之一的，用人单位提前三十日以书面形式通知劳动者本人或者额外支付劳动者一个月工资后，可以解除劳动合同。",
		Keywords: []string{"解除劳动合同", "辞退", "提前通知", "代通知金"},
	},
	{
		Source:   "《中华人民共和国劳动合同法》",
		Article:  "第四十六条",
		Content:  "有下列情形之一的，用人单位应当向劳动者支付经济补偿：用人单位依照本法第四十条、第四十一条规定解除劳动合同的……",
		Keywords: []string{"经济补偿", "裁员", "赔偿", "解除"},
	},
	{
		Source:   "《中华人民共和国劳动合同法》",
		Article:  "第四十七条",
		Content:  "经济补偿按劳动者在本单位工作的年限，每满一年支付一个月工资的标准向劳动者支付。六个月以上不满一年的，按一年计算；不满六个月的，向劳动者支付半个月工资的经济补偿。月工资是指劳动者在劳动合同解除或者终止前十二个月的平均工资。",
		Keywords: []string{"经济补偿", "裁员", "赔偿", "工作年限", "月工资", "N+1"},
	},
	{
		Source:   "《中华人民共和国劳动合同法》",
		Article:  "第八十二条",
		Content:  "用人单位自用工之日起超过一个月不满一年未与劳动者订立书面劳动合同的，应当向劳动者每月支付二倍的工资。",
		Keywords: []string{"二倍工资", "双倍工资", "未签合同"},
	},
	{
		Source:   "《中华人民共和国劳动合同法》",
		Article:  "第八十七条",
		Content:  "用人单位违反本法规定解除或者终止劳动合同的，应当依照本法第四十七条规定的经济补偿标准的二倍向劳动者支付赔偿金。",
		Keywords: []string{"违法解除", "赔偿金", "2N", "辞退"},
	},
	{
		Source:   "《中华人民共和国劳动争议调解仲裁法》",
		Article:  "第二十七条",
		Content:  "劳动争议申请仲裁的时效期间为一年。仲裁时效期间从当事人知道或者应当知道其权利被侵害之日起计算。",
		Keywords: []string{"劳动仲裁", "时效", "劳动争议"},
	},
	// 婚姻家事
	{
		Source:   "《中华人民共和国民法典》",
		Article:  "第一千零七十六条",
		Content:  "夫妻双方自愿离婚的，应当签订书面离婚协议，并亲自到婚姻登记机关申请离婚登记。",
		Keywords: []string{"离婚", "协议离婚", "离婚登记"},
	},
	{
		Source:   "《中华人民共和国民法典》",
		Article:  "第一千零八十四条",
		Content:  "离婚后，不满两周岁的子女，以由母亲直接抚养为原则。已满两周岁的子女，父母双方对抚养问题协议不成的，由人民法院根据双方的具体情况，按照最有利于未成年子女的原则判决。",
		Keywords: []string{"抚养权", "子女抚养", "离婚", "监护"},
	},
	{
		Source:   "《中华人民共和国民法典》",
		Article:  "第一千零八十七条",
		Content:  "离婚时，夫妻的共同财产由双方协议处理；协议不成的，由人民法院根据财产的具体情况，按照照顾子女、女方和无过错方权益的原则判决。",
		Keywords: []string{"财产分割", "共同财产", "离婚"},
	},
	{
		Source:   "《中华人民共和国民法典》",
		Article:  "第一千一百二十七条",
		Content:  "遗产按照下列顺序继承：第一顺序：配偶、子女、父母；第二顺序：兄弟姐妹、祖父母、外祖父母。",
		Keywords: []string{"继承", "遗产", "法定继承", "继承顺序"},
	},
	// 合同纠纷
	{
		Source:   "《中华人民共和国民法典》",
		Article:  "第五百七十七条",
		Content:  "当事人一方不履行合同义务或者履行合同义务不符合约定的，应当承担继续履行、采取补救措施或者赔偿损失等违约责任。",
		Keywords: []string{"违约", "违约责任", "合同", "赔偿损失"},
	},
	{
		Source:   "《中华人民共和国民法典》",
		Article:  "第五百八十五条",
		Content:  "当事人可以约定一方违约时应当根据违约情况向对方支付一定数额的违约金。约定的违约金低于造成的损失的，人民法院或者仲裁机构可以根据当事人的请求予以增加。",
		Keywords: []string{"违约金", "合同", "约定"},
	},
	{
		Source:   "《中华人民共和国民法典》",
		Article:  "第一百八十八条",
		Content:  "向人民法院请求保护民事权利的诉讼时效期间为三年。诉讼时效期间自权利人知道或者应当知道权利受到损害以及义务人之日起计算。",
		Keywords: []string{"诉讼时效", "三年", "民事权利"},
	},
	// 公司法
	{
		Source:   "《中华人民共和国公司法》",
		Article:  "第三条",
		Content:  "公司是企业法人，有独立的法人财产，享有法人财产权。公司以其全部财产对公司的债务承担责任。有限责任公司的股东以其认缴的出资额为限对公司承担责任。",
		Keywords: []string{"公司", "法人", "有限责任", "股东", "出资"},
	},
	{
		Source:   "《中华人民共和国公司法》",
		Article:  "第四条",
		Content:  "有限责任公司的股东按照实缴的出资比例分取红利；公司新增资本时，股东有权优先按照实缴的出资比例认缴出资。全体股东约定不按照出资比例分取红利或者不按照出资比例优先认缴出资的除外。",
		Keywords: []string{"股东", "分红", "股权", "出资比例"},
	},
	// 刑法
	{
		Source:   "《中华人民共和国刑法》",
		Article:  "第六十七条",
		Content:  "犯罪以后自动投案，如实供述自己的罪行的，是自首。对于自首的犯罪分子，可以从轻或者减轻处罚。其中，犯罪较轻的，可以免除处罚。",
		Keywords: []string{"自首", "量刑", "从轻", "减轻处罚"},
	},
	{
		Source:   "《中华人民共和国刑法》",
		Article:  "第七十二条",
		Content:  "对于被判处拘役、三年以下有期徒刑的犯罪分子，同时符合下列条件的，可以宣告缓刑：犯罪情节较轻；有悔罪表现；没有再犯罪的危险……",
		Keywords: []string{"缓刑", "量刑", "三年以下", "有期徒刑"},
	},
	// 程序性问题
	{
		Source:   "《中华人民共和国民事诉讼法》",
		Article:  "第二十二条",
		Content:  "对公民提起的民事诉讼，由被告住所地人民法院管辖；被告住所地与经常居住地不一致的，由经常居住地人民法院管辖。",
		Keywords: []string{"管辖", "法院", "起诉", "被告住所地"},
	},
	{
		Source:   "《诉讼费用交纳办法》",
		Article:  "第十三条",
		Content:  "财产案件根据诉讼请求的金额或者价额，按照比例分段累计交纳：不超过1万元的，每件交纳50元；超过1万元至10万元的部分，按照2.5%交纳……",
		Keywords: []string{"诉讼费", "案件受理费", "费用", "起诉"},
	},
}
